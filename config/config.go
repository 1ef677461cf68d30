// =============================================================================
// 📦 SourceMind 配置结构
// =============================================================================
// 统一配置定义，按论文分析流水线的各个关注点分节：
// 模型、检索、分析、讨论、历史存储、日志与遥测。
// =============================================================================
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/xichengpro/SourceMind/types"
)

// Config 是 SourceMind 的完整配置结构
type Config struct {
	// Models 各任务类别的模型配置
	Models ModelsConfig `yaml:"models" env:"MODELS"`

	// Search 相关工作检索配置
	Search SearchConfig `yaml:"search" env:"SEARCH"`

	// Analysis 分析流水线配置
	Analysis AnalysisConfig `yaml:"analysis" env:"ANALYSIS"`

	// Discussion 评审讨论配置
	Discussion DiscussionConfig `yaml:"discussion" env:"DISCUSSION"`

	// History 历史记录数据库配置
	History DatabaseConfig `yaml:"history" env:"HISTORY"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ModelConfig 单个任务类别的模型配置
type ModelConfig struct {
	// Provider 提供者类型: openai, openrouter, anthropic, custom
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（OpenAI 兼容端点或自建网关）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 是否接受图片输入
	Vision bool `yaml:"vision" env:"VISION"`
}

// IsZero 报告该类别是否未单独配置
func (m ModelConfig) IsZero() bool {
	return m.Provider == "" && m.Model == "" && m.APIKey == "" && m.BaseURL == ""
}

// ModelsConfig 按任务类别划分的模型配置。
// 未单独配置的类别回退到 Core。
type ModelsConfig struct {
	// Core 核心分析模型（要点、实验、术语、报告、问答）
	Core ModelConfig `yaml:"core" env:"CORE"`
	// Translation 翻译模型
	Translation ModelConfig `yaml:"translation" env:"TRANSLATION"`
	// Review 评审讨论模型
	Review ModelConfig `yaml:"review" env:"REVIEW"`
	// RelatedWork 相关工作检索总结模型
	RelatedWork ModelConfig `yaml:"related_work" env:"RELATED_WORK"`
	// Vision 视觉转写模型（扫描版 PDF）
	Vision ModelConfig `yaml:"vision" env:"VISION"`
}

// ForCategory 返回指定任务类别的模型配置。
// 类别未单独配置时回退到 Core；Vision 不回退，未配置即视为不可用。
func (m ModelsConfig) ForCategory(cat types.TaskCategory) ModelConfig {
	var c ModelConfig
	switch cat {
	case types.TaskTranslation:
		c = m.Translation
	case types.TaskReview:
		c = m.Review
	case types.TaskRelatedWork:
		c = m.RelatedWork
	case types.TaskVision:
		return m.Vision
	default:
		return m.Core
	}
	if c.IsZero() {
		return m.Core
	}
	return c
}

// SearchConfig 相关工作检索配置
type SearchConfig struct {
	// Provider 检索提供者: auto（使用所有已配置 Key 的提供者）、tavily、exa、serpapi
	Provider string `yaml:"provider" env:"PROVIDER"`
	// Tavily API Key
	TavilyAPIKey string `yaml:"tavily_api_key" env:"TAVILY_API_KEY"`
	// Exa API Key
	ExaAPIKey string `yaml:"exa_api_key" env:"EXA_API_KEY"`
	// SerpAPI Key
	SerpAPIKey string `yaml:"serpapi_key" env:"SERPAPI_KEY"`
	// 每个查询返回的最大结果数
	MaxResults int `yaml:"max_results" env:"MAX_RESULTS"`
	// 请求速率限制（每秒请求数）
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 结果缓存有效期
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// HTTP 超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// AnalysisConfig 分析流水线配置
type AnalysisConfig struct {
	// 单节点超时
	NodeTimeout time.Duration `yaml:"node_timeout" env:"NODE_TIMEOUT"`
	// 瞬态错误最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 送入分析节点的正文字符上限
	MaxInputChars int `yaml:"max_input_chars" env:"MAX_INPUT_CHARS"`
	// 全文翻译分块大小（字符）
	ChunkSize int `yaml:"chunk_size" env:"CHUNK_SIZE"`
	// 分块重叠（字符）
	ChunkOverlap int `yaml:"chunk_overlap" env:"CHUNK_OVERLAP"`
	// 全文翻译最大并发块数
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
}

// DiscussionConfig 评审讨论配置
type DiscussionConfig struct {
	// 默认模式: dialogue, roundtable
	Mode string `yaml:"mode" env:"MODE"`
	// 对话模式轮数
	Rounds int `yaml:"rounds" env:"ROUNDS"`
	// 送入评审角色的报告截断长度（字符）
	ReportLimit int `yaml:"report_limit" env:"REPORT_LIMIT"`
	// 送入作者角色的原文截断长度（字符）
	DocLimit int `yaml:"doc_limit" env:"DOC_LIMIT"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 时为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Models.Core.IsZero() {
		errs = append(errs, "models.core must be configured")
	}
	if c.Models.Core.Temperature < 0 || c.Models.Core.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.Analysis.MaxConcurrency <= 0 {
		errs = append(errs, "analysis.max_concurrency must be positive")
	}
	// 截断上限为 0 会清空送入模型的全部内容
	if c.Analysis.MaxInputChars <= 0 {
		errs = append(errs, "analysis.max_input_chars must be positive")
	}
	if c.Analysis.ChunkSize > 0 && c.Analysis.ChunkOverlap >= c.Analysis.ChunkSize {
		errs = append(errs, "analysis.chunk_overlap must be smaller than chunk_size")
	}
	if c.Discussion.Rounds <= 0 {
		errs = append(errs, "discussion.rounds must be positive")
	}
	if c.Discussion.ReportLimit <= 0 {
		errs = append(errs, "discussion.report_limit must be positive")
	}
	if c.Discussion.DocLimit <= 0 {
		errs = append(errs, "discussion.doc_limit must be positive")
	}
	switch c.History.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("unsupported history driver: %s", c.History.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
