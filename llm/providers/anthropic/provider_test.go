package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xichengpro/SourceMind/llm"
	"github.com/xichengpro/SourceMind/llm/providers"
	"github.com/xichengpro/SourceMind/types"
)

func testProvider(baseURL string) *Provider {
	return New(providers.ClaudeConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  "sk-ant-test",
			BaseURL: baseURL,
			Model:   "claude-sonnet-4",
		},
	}, false, zap.NewNop())
}

func testRequest() *llm.ChatRequest {
	return &llm.ChatRequest{
		Messages: []types.Message{
			types.NewSystemMessage("你是论文评审专家"),
			types.NewUserMessage("请评审这篇论文"),
		},
		MaxTokens:   2048,
		Temperature: 0.3,
		TopP:        0.9,
		Stop:        []string{"END"},
	}
}

// 采样参数必须同时出现在非流式与流式请求体中。
func TestRequestBodyCarriesSamplingParams(t *testing.T) {
	var bodies []claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body claudeRequest
		require.NoError(t, json.Unmarshal(data, &body))
		bodies = append(bodies, body)

		if body.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "event: content_block_delta\n")
			_, _ = io.WriteString(w, `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"好的"}}`+"\n\n")
			_, _ = io.WriteString(w, "event: message_stop\n")
			_, _ = io.WriteString(w, `data: {"type":"message_stop"}`+"\n\n")
			return
		}
		_, _ = io.WriteString(w, `{"id":"msg_1","content":[{"type":"text","text":"好的"}],"model":"claude-sonnet-4","stop_reason":"end_turn"}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)

	resp, err := p.Completion(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "好的", resp.Text())

	ch, err := p.Stream(context.Background(), testRequest())
	require.NoError(t, err)
	var text string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		text += chunk.Delta.Content
	}
	assert.Equal(t, "好的", text)

	require.Len(t, bodies, 2)
	for _, body := range bodies {
		assert.Equal(t, "claude-sonnet-4", body.Model)
		assert.Equal(t, "你是论文评审专家", body.System)
		assert.Equal(t, 2048, body.MaxTokens)
		assert.InDelta(t, 0.3, body.Temperature, 1e-6)
		assert.InDelta(t, 0.9, body.TopP, 1e-6)
		assert.Equal(t, []string{"END"}, body.StopSeq)
	}
	assert.False(t, bodies[0].Stream)
	assert.True(t, bodies[1].Stream)
}

func TestCompletionHTTPErrorMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	_, err := p.Completion(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}
