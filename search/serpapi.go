package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xichengpro/SourceMind/internal/tlsutil"
)

const defaultSerpAPIBaseURL = "https://serpapi.com"

// SerpAPIClient 调用 SerpAPI 的 Google 引擎。
type SerpAPIClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

// NewSerpAPIClient 创建 SerpAPI 客户端。
func NewSerpAPIClient(apiKey, baseURL string, maxResults int, timeout time.Duration) *SerpAPIClient {
	if baseURL == "" {
		baseURL = defaultSerpAPIBaseURL
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerpAPIClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		client:     tlsutil.SecureHTTPClient(timeout),
	}
}

func (s *SerpAPIClient) Name() string { return "SerpAPI" }

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search 执行一次 Google 搜索并返回自然结果。
func (s *SerpAPIClient) Search(ctx context.Context, query string) ([]Result, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("serpapi key not configured")
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", fmt.Sprintf("%d", s.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create serpapi request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serpapi search failed: status %d: %s", resp.StatusCode, string(msg))
	}

	var parsed serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode serpapi response: %w", err)
	}

	limit := s.maxResults
	if limit > len(parsed.OrganicResults) {
		limit = len(parsed.OrganicResults)
	}
	results := make([]Result, 0, limit)
	for _, r := range parsed.OrganicResults[:limit] {
		results = append(results, Result{URL: r.Link, Title: r.Title, Content: r.Snippet})
	}
	return results, nil
}
