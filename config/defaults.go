package config

import "time"

// DefaultConfig 返回包含所有默认值的完整配置
func DefaultConfig() *Config {
	return &Config{
		Models:     DefaultModelsConfig(),
		Search:     DefaultSearchConfig(),
		Analysis:   DefaultAnalysisConfig(),
		Discussion: DefaultDiscussionConfig(),
		History:    DefaultDatabaseConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultModelsConfig 返回默认模型配置。
// 只填 Core，其余类别按需单独配置，未配置时自动回退。
func DefaultModelsConfig() ModelsConfig {
	return ModelsConfig{
		Core: ModelConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Timeout:     120 * time.Second,
			MaxTokens:   4096,
			Temperature: 0.7,
		},
	}
}

// DefaultSearchConfig 返回默认检索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Provider:     "auto",
		MaxResults:   5,
		RateLimitRPS: 2,
		CacheTTL:     15 * time.Minute,
		Timeout:      30 * time.Second,
	}
}

// DefaultAnalysisConfig 返回默认分析流水线配置
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		NodeTimeout:    5 * time.Minute,
		MaxRetries:     3,
		MaxInputChars:  100000,
		ChunkSize:      4000,
		ChunkOverlap:   200,
		MaxConcurrency: 5,
	}
}

// DefaultDiscussionConfig 返回默认讨论配置
func DefaultDiscussionConfig() DiscussionConfig {
	return DiscussionConfig{
		Mode:        "roundtable",
		Rounds:      5,
		ReportLimit: 10000,
		DocLimit:    50000,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置。
// 默认使用本地 SQLite 文件，开箱即用。
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "sourcemind_history.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "console",
		OutputPaths:  []string{"stderr"},
		EnableCaller: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置（默认关闭）
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "sourcemind",
		SampleRate:   1.0,
	}
}
