// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xichengpro/SourceMind/types"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证模型默认值
	assert.Equal(t, "openai", cfg.Models.Core.Provider)
	assert.Equal(t, "gpt-4o", cfg.Models.Core.Model)
	assert.Equal(t, 4096, cfg.Models.Core.MaxTokens)
	assert.Equal(t, 0.7, cfg.Models.Core.Temperature)

	// 验证检索默认值
	assert.Equal(t, "auto", cfg.Search.Provider)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 15*time.Minute, cfg.Search.CacheTTL)

	// 验证分析流水线默认值
	assert.Equal(t, 4000, cfg.Analysis.ChunkSize)
	assert.Equal(t, 200, cfg.Analysis.ChunkOverlap)
	assert.Equal(t, 5, cfg.Analysis.MaxConcurrency)
	assert.Equal(t, 100000, cfg.Analysis.MaxInputChars)

	// 验证讨论默认值
	assert.Equal(t, "roundtable", cfg.Discussion.Mode)
	assert.Equal(t, 5, cfg.Discussion.Rounds)
	assert.Equal(t, 10000, cfg.Discussion.ReportLimit)
	assert.Equal(t, 50000, cfg.Discussion.DocLimit)

	// 验证历史存储默认值
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, "sourcemind_history.db", cfg.History.Name)

	// 验证日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestDefaultConfig_Valid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "openai", cfg.Models.Core.Provider)
	assert.Equal(t, "sqlite", cfg.History.Driver)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
models:
  core:
    provider: "openrouter"
    model: "anthropic/claude-3.5-sonnet"
    api_key: "sk-test"
    base_url: "https://openrouter.ai/api"
    temperature: 0.3
  translation:
    model: "deepseek-chat"
    api_key: "sk-translate"

search:
  provider: "exa"
  exa_api_key: "exa-test"
  max_results: 8

discussion:
  mode: "dialogue"
  rounds: 3

history:
  driver: "postgres"
  host: "db.example.com"
  port: 5432
  user: "sourcemind"
  password: "secret"
  name: "papers"
  ssl_mode: "require"

log:
  level: "debug"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, "openrouter", cfg.Models.Core.Provider)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", cfg.Models.Core.Model)
	assert.Equal(t, 0.3, cfg.Models.Core.Temperature)
	assert.Equal(t, "deepseek-chat", cfg.Models.Translation.Model)

	assert.Equal(t, "exa", cfg.Search.Provider)
	assert.Equal(t, 8, cfg.Search.MaxResults)

	assert.Equal(t, "dialogue", cfg.Discussion.Mode)
	assert.Equal(t, 3, cfg.Discussion.Rounds)

	assert.Equal(t, "postgres", cfg.History.Driver)
	assert.Equal(t, "db.example.com", cfg.History.Host)

	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("SOURCEMIND_MODELS_CORE_MODEL", "gpt-4o-mini")
	t.Setenv("SOURCEMIND_MODELS_CORE_API_KEY", "sk-env")
	t.Setenv("SOURCEMIND_SEARCH_MAX_RESULTS", "10")
	t.Setenv("SOURCEMIND_HISTORY_DRIVER", "mysql")
	t.Setenv("SOURCEMIND_ANALYSIS_NODE_TIMEOUT", "90s")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Models.Core.Model)
	assert.Equal(t, "sk-env", cfg.Models.Core.APIKey)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, "mysql", cfg.History.Driver)
	assert.Equal(t, 90*time.Second, cfg.Analysis.NodeTimeout)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("SM_LOG_LEVEL", "warn")

	cfg, err := NewLoader().WithEnvPrefix("SM").Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_Validator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	assert.Error(t, err)
}

// --- 类别回退测试 ---

func TestModelsConfig_ForCategory(t *testing.T) {
	m := ModelsConfig{
		Core: ModelConfig{Provider: "openai", Model: "gpt-4o", APIKey: "sk-core"},
		Review: ModelConfig{
			Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", APIKey: "sk-review",
		},
	}

	// 单独配置的类别用自己的配置
	review := m.ForCategory(types.TaskReview)
	assert.Equal(t, "anthropic", review.Provider)

	// 未配置的类别回退到 Core
	translation := m.ForCategory(types.TaskTranslation)
	assert.Equal(t, "gpt-4o", translation.Model)

	related := m.ForCategory(types.TaskRelatedWork)
	assert.Equal(t, "sk-core", related.APIKey)

	// Vision 不回退
	vision := m.ForCategory(types.TaskVision)
	assert.True(t, vision.IsZero())
}

// --- 验证测试 ---

func TestConfig_Validate(t *testing.T) {
	t.Run("missing core model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Models.Core = ModelConfig{}
		err := cfg.Validate()
		assert.ErrorContains(t, err, "models.core")
	})

	t.Run("bad driver", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.History.Driver = "oracle"
		err := cfg.Validate()
		assert.ErrorContains(t, err, "unsupported history driver")
	})

	t.Run("overlap >= chunk size", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Analysis.ChunkSize = 100
		cfg.Analysis.ChunkOverlap = 100
		err := cfg.Validate()
		assert.ErrorContains(t, err, "chunk_overlap")
	})

	// 截断上限清零会把模型输入整个截空，必须在验证阶段拦下
	t.Run("zero truncation limits", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Analysis.MaxInputChars = 0
		err := cfg.Validate()
		assert.ErrorContains(t, err, "max_input_chars")

		cfg = DefaultConfig()
		cfg.Discussion.ReportLimit = 0
		err = cfg.Validate()
		assert.ErrorContains(t, err, "report_limit")

		cfg = DefaultConfig()
		cfg.Discussion.DocLimit = -1
		err = cfg.Validate()
		assert.ErrorContains(t, err, "doc_limit")
	})
}

// --- DSN 测试 ---

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{
		Driver: "postgres", Host: "localhost", Port: 5432,
		User: "u", Password: "p", Name: "db", SSLMode: "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=db sslmode=disable", pg.DSN())

	my := DatabaseConfig{
		Driver: "mysql", Host: "localhost", Port: 3306,
		User: "u", Password: "p", Name: "db",
	}
	assert.Equal(t, "u:p@tcp(localhost:3306)/db?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "history.db"}
	assert.Equal(t, "history.db", lite.DSN())

	unknown := DatabaseConfig{Driver: "oracle"}
	assert.Equal(t, "", unknown.DSN())
}
