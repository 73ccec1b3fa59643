package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests (e.g. "proxima/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// OpenAlexConfig holds settings for the bibliographic search client.
type OpenAlexConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the works endpoint (default https://api.openalex.org/works).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Mailto is sent as the mailto parameter for polite pool access.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`

	// MaxRetries is the number of retries on HTTP 429 and 5xx (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// DropPolicyName selects how relaxation removes a token after an empty search.
type DropPolicyName string

const (
	DropRandom  DropPolicyName = "random"
	DropReverse DropPolicyName = "reverse"
)

// RetrievalConfig holds settings for candidate collection.
type RetrievalConfig struct {
	// PerGroup is the page size for each relaxation round (default 30).
	PerGroup int `json:"per_group" yaml:"per_group" mapstructure:"per_group"`

	// MinTerms is the relaxation floor (default 1).
	MinTerms int `json:"min_terms" yaml:"min_terms" mapstructure:"min_terms"`

	// DropPolicy is "random" (default) or "reverse".
	DropPolicy DropPolicyName `json:"drop_policy" yaml:"drop_policy" mapstructure:"drop_policy"`

	// Seed fixes the random drop stream. Zero seeds from the clock.
	Seed uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	// Concurrency bounds how many rounds search at once (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// LLMProvider identifies the phrase-extraction model backend.
type LLMProvider string

const (
	LLMGoogleAI  LLMProvider = "googleai"
	LLMOpenAI    LLMProvider = "openai"
	LLMAnthropic LLMProvider = "anthropic"
	LLMNone      LLMProvider = "none"
)

// LLMConfig holds settings for the phrase-extraction model.
type LLMConfig struct {
	// Provider selects the backend: googleai, openai, anthropic, or none.
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the endpoint for OpenAI-compatible hosts.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxTerms is the maximum number of phrases per abstract (default 3).
	MaxTerms int `json:"max_terms" yaml:"max_terms" mapstructure:"max_terms"`

	// Timeout bounds a single extraction call. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig holds settings for the embedding model.
type EmbeddingConfig struct {
	// BaseURL is the OpenAI-compatible embedding host.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Model is the embedding model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey authenticates against the host. Local hosts accept any value.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BatchSize is the number of texts per embedding request (default 64).
	BatchSize int `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`

	// Workers bounds concurrent candidate embedding (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// RankConfig holds settings for the ranking pipeline.
type RankConfig struct {
	// TopK is the maximum number of ranked results (default 90).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// Concurrency bounds parallel phrase extraction (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// DigestConfig holds settings for the weekly digest driver.
type DigestConfig struct {
	// DBPath is the SQLite database holding subscriptions.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// OutputDir receives rendered digests.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Lookback is the publication window ending now (default 365 days).
	Lookback time.Duration `json:"lookback" yaml:"lookback" mapstructure:"lookback"`

	// Interval is the minimum time between digests for one subscription (default 7 days).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// MaxItems is the maximum number of works per digest (default 5).
	MaxItems int `json:"max_items" yaml:"max_items" mapstructure:"max_items"`

	// TopK is the ranking depth searched for new works (default 200).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// PerGroup is the page size for each relaxation round (default 30).
	PerGroup int `json:"per_group" yaml:"per_group" mapstructure:"per_group"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console (default console).
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Config groups all stage configurations.
type Config struct {
	OpenAlex  OpenAlexConfig  `json:"openalex" yaml:"openalex" mapstructure:"openalex"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	LLM       LLMConfig       `json:"llm" yaml:"llm" mapstructure:"llm"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Rank      RankConfig      `json:"rank" yaml:"rank" mapstructure:"rank"`
	Digest    DigestConfig    `json:"digest" yaml:"digest" mapstructure:"digest"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when no file, environment
// variable, or flag overrides a value.
func DefaultConfig() Config {
	return Config{
		OpenAlex: OpenAlexConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "proxima/0.1",
			},
			BaseURL:    "https://api.openalex.org/works",
			MaxRetries: 5,
		},
		Retrieval: RetrievalConfig{
			PerGroup:    30,
			MinTerms:    1,
			DropPolicy:  DropRandom,
			Concurrency: 1,
		},
		LLM: LLMConfig{
			Provider: LLMGoogleAI,
			Model:    "gemini-2.5-flash",
			MaxTerms: 3,
			Timeout:  30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:11434/v1",
			Model:     "embeddinggemma",
			BatchSize: 64,
			Workers:   4,
		},
		Rank: RankConfig{
			TopK:        90,
			Concurrency: 1,
		},
		Digest: DigestConfig{
			DBPath:    "data/proxima.db",
			OutputDir: "digests",
			Lookback:  365 * 24 * time.Hour,
			Interval:  7 * 24 * time.Hour,
			MaxItems:  5,
			TopK:      200,
			PerGroup:  30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
