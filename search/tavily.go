package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xichengpro/SourceMind/internal/tlsutil"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

// TavilyClient 调用 Tavily Search API。
type TavilyClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

// NewTavilyClient 创建 Tavily 客户端。
func NewTavilyClient(apiKey, baseURL string, maxResults int, timeout time.Duration) *TavilyClient {
	if baseURL == "" {
		baseURL = defaultTavilyBaseURL
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TavilyClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		client:     tlsutil.SecureHTTPClient(timeout),
	}
}

func (t *TavilyClient) Name() string { return "Tavily" }

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search 执行一次 Tavily 高级搜索。
func (t *TavilyClient) Search(ctx context.Context, query string) ([]Result, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("tavily api key not configured")
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      t.apiKey,
		Query:       query,
		MaxResults:  t.maxResults,
		SearchDepth: "advanced",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily search failed: status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{URL: r.URL, Title: r.Title, Content: r.Content})
	}
	return results, nil
}
