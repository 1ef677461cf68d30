package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xichengpro/SourceMind/llm"
	"github.com/xichengpro/SourceMind/types"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error。
// 这是所有提供者共用的错误映射函数。
func MapHTTPError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized:
		return &types.Error{Code: types.ErrUnauthorized, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusForbidden:
		return &types.Error{Code: types.ErrForbidden, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusTooManyRequests:
		return &types.Error{Code: types.ErrRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusBadRequest:
		// 检查配额/信用关键字
		msgLower := strings.ToLower(msg)
		if strings.Contains(msgLower, "quota") ||
			strings.Contains(msgLower, "credit") ||
			strings.Contains(msgLower, "limit") {
			return &types.Error{Code: types.ErrQuotaExceeded, Message: msg, HTTPStatus: status, Provider: provider}
		}
		return &types.Error{Code: types.ErrInvalidRequest, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &types.Error{Code: types.ErrUpstreamTimeout, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case 529: // model overloaded (used by some providers)
		return &types.Error{Code: types.ErrModelOverloaded, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	default:
		return &types.Error{Code: types.ErrUpstreamError, Message: msg, HTTPStatus: status, Retryable: status >= 500, Provider: provider}
	}
}

// ReadErrorMessage 读取响应体中的错误消息。
// 尝试解析 JSON 错误响应，失败则回退到原始文本。
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}

	return string(data)
}

// OpenAI 兼容 API 通用类型。
// 被 openai 包（同时覆盖 OpenRouter 与自定义 OpenAI 兼容端点）使用。

// OpenAICompatContentPart 表示多模态消息中的一个内容分片。
type OpenAICompatContentPart struct {
	Type     string               `json:"type"` // text 或 image_url
	Text     string               `json:"text,omitempty"`
	ImageURL *OpenAICompatImage   `json:"image_url,omitempty"`
}

// OpenAICompatImage 表示 image_url 分片的载荷。
type OpenAICompatImage struct {
	URL string `json:"url"`
}

// OpenAICompatMessage 表示 OpenAI 兼容的消息格式。
// Content 为纯文本时是 string，携带图片时是分片数组。
type OpenAICompatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// OpenAICompatRequest 表示 OpenAI 兼容的聊天完成请求。
type OpenAICompatRequest struct {
	Model       string                `json:"model"`
	Messages    []OpenAICompatMessage `json:"messages"`
	MaxTokens   int                   `json:"max_tokens,omitempty"`
	Temperature float32               `json:"temperature,omitempty"`
	TopP        float32               `json:"top_p,omitempty"`
	Stop        []string              `json:"stop,omitempty"`
	Stream      bool                  `json:"stream,omitempty"`
}

// OpenAICompatChoice 表示 OpenAI 兼容响应中的单个选项。
type OpenAICompatChoice struct {
	Index        int                      `json:"index"`
	FinishReason string                   `json:"finish_reason"`
	Message      OpenAICompatRespMessage  `json:"message"`
	Delta        *OpenAICompatRespMessage `json:"delta,omitempty"`
}

// OpenAICompatRespMessage 表示响应中的消息（content 总是字符串）。
type OpenAICompatRespMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAICompatUsage 表示 OpenAI 兼容响应中的 token 用量。
type OpenAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompatResponse 表示 OpenAI 兼容的聊天完成响应。
type OpenAICompatResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []OpenAICompatChoice `json:"choices"`
	Usage   *OpenAICompatUsage   `json:"usage,omitempty"`
	Created int64                `json:"created,omitempty"`
}

// ConvertMessagesToOpenAI 将 types.Message 切片转换为 OpenAI 兼容格式。
// 带图片的消息转换为 text + image_url 分片数组。
func ConvertMessagesToOpenAI(msgs []types.Message) []OpenAICompatMessage {
	out := make([]OpenAICompatMessage, 0, len(msgs))
	for _, m := range msgs {
		oa := OpenAICompatMessage{
			Role: string(m.Role),
			Name: m.Name,
		}
		if len(m.Images) == 0 {
			oa.Content = m.Content
			out = append(out, oa)
			continue
		}
		parts := make([]OpenAICompatContentPart, 0, len(m.Images)+1)
		if m.Content != "" {
			parts = append(parts, OpenAICompatContentPart{Type: "text", Text: m.Content})
		}
		for _, img := range m.Images {
			url := img.URL
			if img.Type == "base64" {
				url = "data:image/png;base64," + img.Data
			}
			parts = append(parts, OpenAICompatContentPart{
				Type:     "image_url",
				ImageURL: &OpenAICompatImage{URL: url},
			})
		}
		oa.Content = parts
		out = append(out, oa)
	}
	return out
}

// ToChatResponse 将 OpenAI 兼容的响应转换为 llm.ChatResponse。
func ToChatResponse(oa OpenAICompatResponse, provider string) *llm.ChatResponse {
	choices := make([]llm.ChatChoice, 0, len(oa.Choices))
	for _, c := range oa.Choices {
		choices = append(choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message: types.Message{
				Role:    types.RoleAssistant,
				Content: c.Message.Content,
			},
		})
	}
	resp := &llm.ChatResponse{
		ID:       oa.ID,
		Provider: provider,
		Model:    oa.Model,
		Choices:  choices,
	}
	if oa.Usage != nil {
		resp.Usage = llm.ChatUsage{
			PromptTokens:     oa.Usage.PromptTokens,
			CompletionTokens: oa.Usage.CompletionTokens,
			TotalTokens:      oa.Usage.TotalTokens,
		}
	}
	return resp
}

// ChooseModel 根据请求和默认值选择模型。
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}
