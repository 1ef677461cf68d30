package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/types"
)

const (
	// 无提供者可用时返回的提示文案
	noProviderMessage = "No search results found. Please configure Tavily, Exa, or SerpAPI Key."
	// NoResultsMessage 表示查询都执行了但一无所获，调用方据此跳过汇总。
	NoResultsMessage = "Search executed but returned no results."
)

// queryVariant 是针对一篇论文标题生成的查询变体。
type queryVariant struct {
	query  string
	header string // 段落标题后缀，如 "Search Results (English)"
}

// MultiSearcher 聚合多个搜索提供者。
// 对每个提供者依次发出英文、中文、GitHub 三种查询，
// 把成功的结果拼装成带段落标题的 Markdown 文本。
type MultiSearcher struct {
	providers []Provider
	limiter   *rate.Limiter
	cache     *resultCache
	logger    *zap.Logger
}

// NewMultiSearcher 根据配置创建聚合搜索器。
// 只有配置了 API Key 的提供者才会被启用；cfg.Provider 为
// "auto" 时启用全部，否则只启用指定的那一个。
func NewMultiSearcher(cfg config.SearchConfig, logger *zap.Logger) *MultiSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	var providers []Provider
	want := func(name string) bool {
		return cfg.Provider == "" || cfg.Provider == "auto" || cfg.Provider == name
	}
	if cfg.ExaAPIKey != "" && want("exa") {
		providers = append(providers, NewExaClient(cfg.ExaAPIKey, "", cfg.MaxResults, cfg.Timeout))
	}
	if cfg.TavilyAPIKey != "" && want("tavily") {
		providers = append(providers, NewTavilyClient(cfg.TavilyAPIKey, "", cfg.MaxResults, cfg.Timeout))
	}
	if cfg.SerpAPIKey != "" && want("serpapi") {
		providers = append(providers, NewSerpAPIClient(cfg.SerpAPIKey, "", cfg.MaxResults, cfg.Timeout))
	}

	return NewMultiSearcherWithProviders(providers, cfg, logger)
}

// NewMultiSearcherWithProviders 用显式的提供者列表创建聚合搜索器。
func NewMultiSearcherWithProviders(providers []Provider, cfg config.SearchConfig, logger *zap.Logger) *MultiSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 2
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &MultiSearcher{
		providers: providers,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		cache:     newResultCache(ttl),
		logger:    logger,
	}
}

// HasProviders 报告是否至少有一个可用的搜索提供者。
func (m *MultiSearcher) HasProviders() bool {
	return len(m.providers) > 0
}

// SearchPaper 针对论文标题检索相关解读与代码实现。
// 单个提供者或查询失败只记日志不中断；所有查询均无结果时
// 返回说明性文案而不是错误。
func (m *MultiSearcher) SearchPaper(ctx context.Context, title string) (string, error) {
	if len(m.providers) == 0 {
		return noProviderMessage, nil
	}

	variants := []queryVariant{
		{query: fmt.Sprintf("analysis review of paper '%s'", title), header: "Search Results (English)"},
		{query: fmt.Sprintf("'%s' 论文解读 深度分析 评价", title), header: "Search Results (Chinese)"},
		{query: fmt.Sprintf("site:github.com '%s' code implementation", title), header: "GitHub Search Results"},
	}

	var sections []string
	var failures int
	for _, p := range m.providers {
		for _, v := range variants {
			formatted, err := m.searchOne(ctx, p, v.query)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				failures++
				m.logger.Warn("搜索查询失败",
					zap.String("provider", p.Name()),
					zap.String("query", v.query),
					zap.Error(err))
				continue
			}
			if formatted == "" {
				continue
			}
			sections = append(sections, fmt.Sprintf("### %s %s\n%s", p.Name(), v.header, formatted))
		}
	}

	if len(sections) == 0 {
		if failures > 0 {
			// 每条查询都因提供者错误失败，交给上层重试
			return "", types.NewError(types.ErrUpstreamError, "all search queries failed").
				WithRetryable(true)
		}
		return NoResultsMessage, nil
	}
	return strings.Join(sections, "\n\n"), nil
}

// searchOne 执行单条查询，带限速与缓存。
func (m *MultiSearcher) searchOne(ctx context.Context, p Provider, query string) (string, error) {
	cacheKey := p.Name() + "|" + query
	if cached, ok := m.cache.get(cacheKey); ok {
		m.logger.Debug("搜索缓存命中", zap.String("provider", p.Name()))
		return cached, nil
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}

	results, err := p.Search(ctx, query)
	if err != nil {
		return "", err
	}

	formatted := FormatResults(results)
	if formatted != "" {
		m.cache.set(cacheKey, formatted)
	}
	return formatted, nil
}

// ============================================================================
// 搜索结果缓存
// ============================================================================

type resultCache struct {
	entries map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

type cacheEntry struct {
	formatted string
	expiresAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

func (c *resultCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[strings.ToLower(strings.TrimSpace(key))]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.formatted, true
}

func (c *resultCache) set(key string, formatted string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[strings.ToLower(strings.TrimSpace(key))] = &cacheEntry{
		formatted: formatted,
		expiresAt: time.Now().Add(c.ttl),
	}
}
