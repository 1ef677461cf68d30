package docload

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xichengpro/SourceMind/internal/tlsutil"
)

// ArxivConfig 配置 arXiv 客户端。
type ArxivConfig struct {
	// APIBaseURL arXiv 元数据 API 地址
	APIBaseURL string `json:"api_base_url"`
	// PDFBaseURL PDF 下载地址前缀
	PDFBaseURL string `json:"pdf_base_url"`
	// HTTP 超时
	Timeout time.Duration `json:"timeout"`
	// 失败重试次数
	RetryCount int `json:"retry_count"`
	// 重试间隔
	RetryDelay time.Duration `json:"retry_delay"`
}

// DefaultArxivConfig 返回 arXiv 客户端的合理默认值。
func DefaultArxivConfig() ArxivConfig {
	return ArxivConfig{
		APIBaseURL: "http://export.arxiv.org/api/query",
		PDFBaseURL: "https://arxiv.org/pdf",
		Timeout:    60 * time.Second,
		RetryCount: 3,
		RetryDelay: 2 * time.Second,
	}
}

// ArxivMeta 是一篇 arXiv 论文的元数据。
type ArxivMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Authors   []string  `json:"authors"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`
	PDFURL    string    `json:"pdf_url"`
}

// ArxivClient 访问 arXiv 元数据 API 和 PDF 下载。
type ArxivClient struct {
	config ArxivConfig
	client *http.Client
	logger *zap.Logger
}

// NewArxivClient 创建 arXiv 客户端。
func NewArxivClient(config ArxivConfig, logger *zap.Logger) *ArxivClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArxivClient{
		config: config,
		client: tlsutil.SecureHTTPClient(config.Timeout),
		logger: logger,
	}
}

// arXiv ID 形如 2310.00000 或 2310.00000v2，旧式 ID 形如 cs/0112017。
var arxivIDPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5}(v\d+)?|[a-z\-]+(\.[A-Z]{2})?/\d{7}(v\d+)?)$`)

// ParseArxivID 从 arXiv URL 或裸 ID 中提取论文 ID。
// 支持的形式：
//
//	https://arxiv.org/abs/2310.00000
//	https://arxiv.org/pdf/2310.00000.pdf
//	https://arxiv.org/abs/2310.00000v1
//	arxiv:2310.00000
//	2310.00000
func ParseArxivID(source string) (string, bool) {
	s := strings.TrimSpace(source)
	s = strings.TrimPrefix(s, "arxiv:")

	if strings.Contains(s, "arxiv.org") {
		u, err := url.Parse(s)
		if err != nil {
			return "", false
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 {
			return "", false
		}
		// abs/<id> 或 pdf/<id>.pdf；旧式 ID 带类别层级
		id := strings.Join(parts[1:], "/")
		id = strings.TrimSuffix(id, ".pdf")
		if arxivIDPattern.MatchString(id) {
			return id, true
		}
		return "", false
	}

	if arxivIDPattern.MatchString(s) {
		return s, true
	}
	return "", false
}

// FetchMetadata 从 arXiv API 获取论文元数据。
func (a *ArxivClient) FetchMetadata(ctx context.Context, id string) (*ArxivMeta, error) {
	params := url.Values{
		"id_list":     {id},
		"max_results": {"1"},
	}
	requestURL := fmt.Sprintf("%s?%s", a.config.APIBaseURL, params.Encode())

	a.logger.Info("querying arXiv metadata",
		zap.String("id", id),
		zap.String("url", requestURL))

	body, err := a.getWithRetry(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("arXiv metadata query failed: %w", err)
	}

	metas, err := parseArxivFeed(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse arXiv response: %w", err)
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("arXiv returned no entry for id %s", id)
	}
	return &metas[0], nil
}

// DownloadPDF 下载论文 PDF。
func (a *ArxivClient) DownloadPDF(ctx context.Context, id string) ([]byte, error) {
	pdfURL := fmt.Sprintf("%s/%s.pdf", strings.TrimRight(a.config.PDFBaseURL, "/"), id)

	a.logger.Info("downloading arXiv PDF", zap.String("url", pdfURL))

	data, err := a.getWithRetry(ctx, pdfURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download PDF from %s: %w", pdfURL, err)
	}
	return data, nil
}

// getWithRetry 带重试地执行 GET 请求。
func (a *ArxivClient) getWithRetry(ctx context.Context, requestURL string) ([]byte, error) {
	var body []byte
	var err error
	for attempt := 0; attempt <= a.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.config.RetryDelay):
			}
			a.logger.Debug("retrying arXiv request", zap.Int("attempt", attempt))
		}

		body, err = a.doRequest(ctx, requestURL)
		if err == nil {
			return body, nil
		}
		a.logger.Warn("arXiv request failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, fmt.Errorf("giving up after %d retries: %w", a.config.RetryCount, err)
}

func (a *ArxivClient) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Atom XML 响应结构
type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Updated   string        `xml:"updated"`
	Authors   []arxivAuthor `xml:"author"`
	Links     []arxivLink   `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// parseArxivFeed 解析 arXiv Atom XML 响应。
func parseArxivFeed(body []byte) ([]ArxivMeta, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("XML parse error: %w", err)
	}

	metas := make([]ArxivMeta, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		meta := ArxivMeta{
			ID:      entry.ID,
			Title:   strings.Join(strings.Fields(entry.Title), " "),
			Summary: strings.TrimSpace(entry.Summary),
		}

		for _, author := range entry.Authors {
			meta.Authors = append(meta.Authors, author.Name)
		}

		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			meta.Published = t
		}
		if t, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
			meta.Updated = t
		}

		for _, link := range entry.Links {
			if link.Type == "application/pdf" {
				meta.PDFURL = link.Href
			}
		}

		metas = append(metas, meta)
	}

	return metas, nil
}
