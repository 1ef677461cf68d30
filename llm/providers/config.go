package providers

import "time"

// BaseProviderConfig 提供者基础配置，被各具体提供者配置嵌入。
type BaseProviderConfig struct {
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Model   string        `yaml:"model" env:"MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// OpenAIConfig OpenAI 及兼容端点（OpenRouter、自建网关等）的配置。
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Organization       string `yaml:"organization,omitempty" env:"ORGANIZATION"`
}

// ClaudeConfig Anthropic Claude 提供者的配置。
type ClaudeConfig struct {
	BaseProviderConfig `yaml:",inline"`
	// Version 是 anthropic-version 请求头的值，为空时使用默认版本。
	Version string `yaml:"version,omitempty" env:"VERSION"`
}
