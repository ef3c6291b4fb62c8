package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// configValidate checks Config field ranges
var configValidate = validator.New()

// Config is the complete regdiff configuration
type Config struct {
	Matching     MatchingConfig    `yaml:"matching" mapstructure:"matching"`
	Validation   ValidationConfig  `yaml:"validation" mapstructure:"validation"`
	Embedding    EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
}

// MatchingConfig holds section alignment and classification thresholds
type MatchingConfig struct {
	MatchThreshold           float64 `yaml:"match_threshold" mapstructure:"match_threshold" validate:"gte=0,lte=1"`
	HeadingFallbackThreshold float64 `yaml:"heading_fallback_threshold" mapstructure:"heading_fallback_threshold" validate:"gte=0,lte=1"`
	RelocationThreshold      float64 `yaml:"relocation_threshold" mapstructure:"relocation_threshold" validate:"gte=0,lte=1"`
	UnchangedThreshold       float64 `yaml:"unchanged_threshold" mapstructure:"unchanged_threshold" validate:"gte=0,lte=1"`
}

// ValidationConfig holds refinement and filtering settings
type ValidationConfig struct {
	MaxTrueChanges int  `yaml:"max_true_changes" mapstructure:"max_true_changes" validate:"gte=1"`
	CapTrigger     int  `yaml:"cap_trigger" mapstructure:"cap_trigger" validate:"gte=0"`
	StrictMode     bool `yaml:"strict_mode" mapstructure:"strict_mode"`
	IncludeNonTrue bool `yaml:"include_non_true" mapstructure:"include_non_true"`
}

// EmbeddingConfig configures the optional semantic embedding backend
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Provider  string `yaml:"provider" mapstructure:"provider" validate:"oneof=ollama openai"`
	Model     string `yaml:"model" mapstructure:"model"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout" validate:"gte=1"` // seconds
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=1"`
}

// LLMConfig configures the optional narrative summary
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai anthropic claude ollama"`
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout" validate:"gte=1"` // seconds
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=1"`
}

// CacheConfig configures the embedding vector cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// HTTPConfig configures remote document fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ConcurrencyConfig configures worker counts
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers" validate:"gte=0"`             // Pair scoring workers (0 = NumCPU)
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers" validate:"gte=1"` // Parallel comparisons in batch mode
}

// RateLimitConfig limits calls to embedding and LLM providers
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=1"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	Format        string `yaml:"format" mapstructure:"format" validate:"oneof=json md both"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	Summaries     bool   `yaml:"summaries" mapstructure:"summaries"`
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// ServerConfig configures `regdiff serve`
type ServerConfig struct {
	Addr         string `yaml:"addr" mapstructure:"addr" validate:"required"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
}

// DefaultConfig returns the standard configuration
func DefaultConfig() Config {
	return Config{
		Matching: MatchingConfig{
			MatchThreshold:           0.58,
			HeadingFallbackThreshold: 0.82,
			RelocationThreshold:      0.78,
			UnchangedThreshold:       0.95,
		},
		Validation: ValidationConfig{
			MaxTrueChanges: 35,
			CapTrigger:     50,
			StrictMode:     true,
			IncludeNonTrue: false,
		},
		Embedding: EmbeddingConfig{
			Enabled:   false, // Opt-in: keeps runs offline and deterministic
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Timeout:   30,
			BatchSize: 64,
		},
		LLM: LLMConfig{
			Provider:       "", // Disabled by default
			Timeout:        30,
			StrictEvidence: true, // CRITICAL: Always enforce
			MaxTokens:      1000,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "",
			TTL:     7 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "regdiff/0.1 (+https://github.com/ppiankov/regdiff)",
			MaxBodyBytes:  20 * 1024 * 1024,
			RespectRobots: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      0,
			BatchWorkers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         10,
		},
		Output: OutputConfig{
			Format:        "both",
			Dir:           ".",
			Summaries:     true,
			IncludeFooter: true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 10 * 1024 * 1024,
		},
	}
}

// Validate checks every field range
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
