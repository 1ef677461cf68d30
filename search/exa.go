package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xichengpro/SourceMind/internal/textutil"
	"github.com/xichengpro/SourceMind/internal/tlsutil"
)

const defaultExaBaseURL = "https://api.exa.ai"

// ExaClient 调用 Exa 神经搜索 API。
type ExaClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

// NewExaClient 创建 Exa 客户端。
func NewExaClient(apiKey, baseURL string, maxResults int, timeout time.Duration) *ExaClient {
	if baseURL == "" {
		baseURL = defaultExaBaseURL
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExaClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		client:     tlsutil.SecureHTTPClient(timeout),
	}
}

func (e *ExaClient) Name() string { return "Exa" }

type exaRequest struct {
	Query      string      `json:"query"`
	NumResults int         `json:"numResults"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Text bool `json:"text"`
}

type exaResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Text  string `json:"text"`
	} `json:"results"`
}

// Search 执行一次 Exa 搜索，返回正文摘录。
func (e *ExaClient) Search(ctx context.Context, query string) ([]Result, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("exa api key not configured")
	}

	body, err := json.Marshal(exaRequest{
		Query:      query,
		NumResults: e.maxResults,
		Contents:   exaContents{Text: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal exa request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create exa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("exa search failed: status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed exaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode exa response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		// Exa 的正文可能很长，截断到摘要长度
		content := textutil.TruncateWithEllipsis(r.Text, 600)
		results = append(results, Result{URL: r.URL, Title: r.Title, Content: content})
	}
	return results, nil
}
