package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/types"
)

func coreOnly() config.ModelsConfig {
	return config.ModelsConfig{
		Core: config.ModelConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			APIKey:   "sk-test",
		},
	}
}

func TestNew_CoreFallback(t *testing.T) {
	f, err := New(coreOnly(), zap.NewNop())
	require.NoError(t, err)

	// 翻译、评审、相关工作全部回退到 core
	for _, cat := range []types.TaskCategory{
		types.TaskCore, types.TaskTranslation, types.TaskReview, types.TaskRelatedWork,
	} {
		c, err := f.ClientFor(cat)
		require.NoError(t, err, "category %s", cat)
		assert.Equal(t, "gpt-4o", c.Model())
		assert.Equal(t, cat, c.Category())
	}
}

func TestNew_PerCategoryOverride(t *testing.T) {
	cfg := coreOnly()
	cfg.Review = config.ModelConfig{
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet-20241022",
		APIKey:   "sk-ant",
	}

	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	review, err := f.ClientFor(types.TaskReview)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", review.Provider().Name())

	core, err := f.ClientFor(types.TaskCore)
	require.NoError(t, err)
	assert.Equal(t, "openai", core.Provider().Name())
}

func TestNew_MissingAPIKey(t *testing.T) {
	cfg := config.ModelsConfig{
		Core: config.ModelConfig{Provider: "openai", Model: "gpt-4o"},
	}

	_, err := New(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := coreOnly()
	cfg.Core.Provider = "bedrock"

	_, err := New(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
}

func TestClientFor_VisionNotConfigured(t *testing.T) {
	f, err := New(coreOnly(), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, f.HasVision())

	_, err = f.ClientFor(types.TaskVision)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
}

func TestClientFor_VisionCapabilityMismatch(t *testing.T) {
	cfg := coreOnly()
	// 配置了视觉类别但模型不支持图片输入
	cfg.Vision = config.ModelConfig{
		Provider: "openai",
		Model:    "gpt-3.5-turbo",
		APIKey:   "sk-test",
		Vision:   false,
	}

	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, f.HasVision())

	_, err = f.ClientFor(types.TaskVision)
	require.Error(t, err)
	assert.Equal(t, types.ErrCapabilityMismatch, types.GetErrorCode(err))
}

func TestClientFor_VisionOK(t *testing.T) {
	cfg := coreOnly()
	cfg.Vision = config.ModelConfig{
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "sk-test",
		Vision:   true,
	}

	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, f.HasVision())

	c, err := f.ClientFor(types.TaskVision)
	require.NoError(t, err)
	assert.True(t, c.Provider().SupportsVision())
}

func TestProvidersRegistry(t *testing.T) {
	cfg := coreOnly()
	cfg.Review = config.ModelConfig{
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet-20241022",
		APIKey:   "sk-ant",
	}

	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	reg := f.Providers()
	assert.Equal(t, []string{"core", "related_work", "review", "translation"}, reg.List())

	review, ok := reg.Get("review")
	require.True(t, ok)
	assert.Equal(t, "anthropic", review.Name())

	// 默认 Provider 是 core 类别绑定的那个
	def, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "openai", def.Name())
}

func TestResolveBaseURL(t *testing.T) {
	assert.Equal(t, "https://openrouter.ai/api", resolveBaseURL("openrouter", ""))
	assert.Equal(t, "https://my.gateway", resolveBaseURL("openrouter", "https://my.gateway"))
	assert.Equal(t, "", resolveBaseURL("openai", ""))
}
