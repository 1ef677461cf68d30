// Package factory creates LLM Provider instances per task category. It
// imports the provider sub-packages and maps config entries to their
// constructors, breaking the import cycle that would occur if this logic
// lived in the llm package directly.
//
// Each pipeline task (核心分析、翻译、评审、相关工作、视觉转写) can carry its
// own model configuration; categories without one fall back to the core
// model. All configured categories are validated eagerly at construction so
// a missing credential surfaces before any paper is loaded.
package factory

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/llm"
	"github.com/xichengpro/SourceMind/llm/providers"
	"github.com/xichengpro/SourceMind/llm/providers/anthropic"
	"github.com/xichengpro/SourceMind/llm/providers/openai"
	"github.com/xichengpro/SourceMind/types"
)

// Client binds a Provider to the sampling parameters of one task category.
type Client struct {
	provider    llm.Provider
	category    types.TaskCategory
	model       string
	maxTokens   int
	temperature float32
}

// Provider returns the underlying LLM provider.
func (c *Client) Provider() llm.Provider { return c.provider }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Category returns the task category this client serves.
func (c *Client) Category() types.TaskCategory { return c.category }

// Complete sends the messages and returns the assistant text.
func (c *Client) Complete(ctx context.Context, msgs []types.Message) (string, error) {
	resp, err := c.provider.Completion(ctx, &llm.ChatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Stream sends the messages and returns a channel of incremental chunks.
func (c *Client) Stream(ctx context.Context, msgs []types.Message) (<-chan llm.StreamChunk, error) {
	return c.provider.Stream(ctx, &llm.ChatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
}

// Factory hands out per-category clients built from the models config.
// 构建出的 Provider 同时登记到 ProviderRegistry，按类别名检索，
// core 类别的 Provider 作为默认项。
type Factory struct {
	clients  map[types.TaskCategory]*Client
	registry *llm.ProviderRegistry
	logger   *zap.Logger
}

// New builds a Factory and eagerly validates every task category.
// 配置缺失或凭据为空时立即返回 ErrConfiguration，而不是等到第一次调用。
func New(cfg config.ModelsConfig, logger *zap.Logger) (*Factory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Factory{
		clients:  make(map[types.TaskCategory]*Client),
		registry: llm.NewProviderRegistry(),
		logger:   logger,
	}

	for _, cat := range types.TaskCategories() {
		mc := cfg.ForCategory(cat)
		if mc.IsZero() {
			if cat == types.TaskVision {
				// 视觉模型可选：未配置时扫描版 PDF 不可处理
				continue
			}
			return nil, types.NewError(types.ErrConfiguration,
				fmt.Sprintf("no model configured for category %q and no core fallback", cat))
		}

		client, err := buildClient(cat, mc, logger)
		if err != nil {
			return nil, err
		}
		f.clients[cat] = client
		f.registry.Register(string(cat), client.provider)

		logger.Debug("model category bound",
			zap.String("category", string(cat)),
			zap.String("provider", client.provider.Name()),
			zap.String("model", client.model),
		)
	}

	if err := f.registry.SetDefault(string(types.TaskCore)); err != nil {
		return nil, types.NewError(types.ErrConfiguration, "core model not registered").WithCause(err)
	}

	return f, nil
}

// Providers returns the registry of providers bound per task category.
func (f *Factory) Providers() *llm.ProviderRegistry {
	return f.registry
}

// ClientFor returns the client for the given task category.
func (f *Factory) ClientFor(cat types.TaskCategory) (*Client, error) {
	c, ok := f.clients[cat]
	if !ok {
		return nil, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("no model configured for category %q", cat))
	}
	if cat == types.TaskVision && !c.provider.SupportsVision() {
		return nil, types.NewError(types.ErrCapabilityMismatch,
			fmt.Sprintf("model %q for category %q does not accept image inputs", c.model, cat)).
			WithHTTPStatus(http.StatusBadRequest)
	}
	return c, nil
}

// ChatModel adapts ClientFor to the llm.ModelSource interface.
func (f *Factory) ChatModel(cat types.TaskCategory) (llm.ChatModel, error) {
	return f.ClientFor(cat)
}

// HasVision reports whether a vision-capable client is available.
func (f *Factory) HasVision() bool {
	c, ok := f.clients[types.TaskVision]
	return ok && c.provider.SupportsVision()
}

// buildClient maps one model config entry to a concrete provider.
func buildClient(cat types.TaskCategory, mc config.ModelConfig, logger *zap.Logger) (*Client, error) {
	if mc.APIKey == "" {
		return nil, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("missing API key for category %q (provider %q)", cat, mc.Provider))
	}

	base := providers.BaseProviderConfig{
		APIKey:  mc.APIKey,
		BaseURL: mc.BaseURL,
		Model:   mc.Model,
		Timeout: mc.Timeout,
	}

	var p llm.Provider
	switch mc.Provider {
	case "openai", "openrouter", "custom", "":
		name := mc.Provider
		if name == "" || name == "custom" {
			name = "openai"
		}
		p = openai.New(openai.Config{
			ProviderName: name,
			APIKey:       base.APIKey,
			BaseURL:      resolveBaseURL(mc.Provider, base.BaseURL),
			DefaultModel: base.Model,
			Timeout:      base.Timeout,
			Vision:       mc.Vision,
		}, logger)

	case "anthropic", "claude":
		p = anthropic.New(providers.ClaudeConfig{BaseProviderConfig: base}, mc.Vision, logger)

	default:
		return nil, types.NewError(types.ErrConfiguration,
			fmt.Sprintf("unknown provider %q for category %q", mc.Provider, cat))
	}

	return &Client{
		provider:    p,
		category:    cat,
		model:       mc.Model,
		maxTokens:   mc.MaxTokens,
		temperature: float32(mc.Temperature),
	}, nil
}

// resolveBaseURL fills in the well-known endpoint for named providers.
func resolveBaseURL(provider, baseURL string) string {
	if baseURL != "" {
		return baseURL
	}
	if provider == "openrouter" {
		return "https://openrouter.ai/api"
	}
	return "" // openai.New defaults to api.openai.com
}
