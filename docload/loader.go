// Package docload loads papers from arXiv or local PDF files and turns them
// into plain text ready for analysis. Scanned PDFs can additionally be
// transcribed page by page through a vision model.
package docload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xichengpro/SourceMind/llm/factory"
	"github.com/xichengpro/SourceMind/prompts"
	"github.com/xichengpro/SourceMind/types"
)

// SourceType 标识论文来源。取值会持久化到历史记录。
type SourceType string

const (
	SourceArxiv SourceType = "Arxiv"
	SourcePDF   SourceType = "PDF"
)

// Document 是加载完成的论文。
type Document struct {
	SourceType SourceType `json:"source_type"`
	// Source 原始输入（URL 或文件路径）
	Source string `json:"source"`
	// SourceName 展示用名称（arXiv ID 或文件名）
	SourceName string `json:"source_name"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	// Text 论文全文
	Text string `json:"text"`
}

// Options 控制加载行为。
type Options struct {
	// UseVLM 启用视觉模型逐页转写（扫描版 PDF）
	UseVLM bool
	// PageImages 预渲染的页面 PNG（base64），仅 UseVLM 时使用
	PageImages []string
}

// Loader 从 arXiv 或本地文件加载论文。
type Loader struct {
	arxiv   *ArxivClient
	factory *factory.Factory
	logger  *zap.Logger
}

// NewLoader 创建论文加载器。factory 可为 nil，此时 VLM 转写不可用。
func NewLoader(arxiv *ArxivClient, f *factory.Factory, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{arxiv: arxiv, factory: f, logger: logger}
}

// Load 加载论文。source 是 arXiv URL/ID 或本地 PDF 路径。
func (l *Loader) Load(ctx context.Context, source string, opts Options) (*Document, error) {
	if id, ok := ParseArxivID(source); ok {
		return l.loadArxiv(ctx, source, id, opts)
	}
	return l.loadLocal(ctx, source, opts)
}

func (l *Loader) loadArxiv(ctx context.Context, source, id string, opts Options) (*Document, error) {
	l.logger.Info("loading from arXiv", zap.String("id", id))

	data, err := l.arxiv.DownloadPDF(ctx, id)
	if err != nil {
		return nil, err
	}

	text, err := l.extract(ctx, data, opts)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		SourceType: SourceArxiv,
		Source:     source,
		SourceName: id,
		Title:      fmt.Sprintf("Arxiv:%s", id),
		Text:       text,
	}

	// 元数据获取失败不阻塞加载
	if meta, err := l.arxiv.FetchMetadata(ctx, id); err != nil {
		l.logger.Warn("failed to fetch arXiv metadata", zap.Error(err))
	} else {
		doc.Title = meta.Title
		doc.Authors = meta.Authors
		doc.Summary = meta.Summary
	}

	return doc, nil
}

func (l *Loader) loadLocal(ctx context.Context, source string, opts Options) (*Document, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", source)
		}
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	l.logger.Info("loading local PDF", zap.String("path", source))

	text, err := l.extract(ctx, data, opts)
	if err != nil {
		return nil, err
	}

	return &Document{
		SourceType: SourcePDF,
		Source:     source,
		SourceName: filepath.Base(source),
		Title:      filepath.Base(source),
		Text:       text,
	}, nil
}

// extract 提取全文。VLM 模式失败或为空时回退到纯文本提取。
func (l *Loader) extract(ctx context.Context, data []byte, opts Options) (string, error) {
	if opts.UseVLM && len(opts.PageImages) > 0 {
		text, err := l.TranscribePages(ctx, opts.PageImages)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
		l.logger.Warn("VLM transcription returned empty, falling back to text extraction")
	}

	text, err := ExtractPDFText(data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no content loaded from source")
	}
	return text, nil
}

// TranscribePages 用视觉模型把渲染好的页面图片逐页转写成 Markdown。
// 单页失败以占位符记录，不中断其余页面。
func (l *Loader) TranscribePages(ctx context.Context, pageImages []string) (string, error) {
	if l.factory == nil {
		return "", types.NewError(types.ErrConfiguration, "no model factory bound, VLM transcription unavailable")
	}
	client, err := l.factory.ClientFor(types.TaskVision)
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, len(pageImages))
	for i, img := range pageImages {
		l.logger.Info("transcribing page",
			zap.Int("page", i+1),
			zap.Int("total", len(pageImages)))

		md, err := client.Complete(ctx, prompts.VLMPage(img))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			l.logger.Warn("page transcription failed", zap.Int("page", i+1), zap.Error(err))
			md = "[VLM Parsing Error]"
		}
		pages = append(pages, fmt.Sprintf("## Page %d\n\n%s", i+1, md))
	}

	return strings.Join(pages, "\n\n---\n\n"), nil
}
