// Package search 提供相关工作的网络检索。
// 支持 Tavily、Exa 和 SerpAPI 三家提供者，MultiSearcher 将它们与
// 英文/中文/GitHub 三种查询变体组合成一份汇总的搜索素材。
package search

import (
	"context"
	"fmt"
	"strings"
)

// Result 是单条搜索结果。
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Provider 是搜索提供者接口。
type Provider interface {
	// Search 执行查询并返回结果列表。
	Search(ctx context.Context, query string) ([]Result, error)
	// Name 返回提供者名称。
	Name() string
}

// FormatResults 把结果格式化为 Markdown 列表。
func FormatResults(results []Result) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		url := r.URL
		if url == "" {
			url = "Link"
		}
		lines = append(lines, fmt.Sprintf("- **%s**: %s", url, r.Content))
	}
	return strings.Join(lines, "\n\n")
}
