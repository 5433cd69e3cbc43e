package model

import "time"

// Config is the complete runtime configuration.
// Field names double as viper keys (e.g. "llm.model", "budget.max_posts").
type Config struct {
	Reddit       RedditConfig      `yaml:"reddit" mapstructure:"reddit"`
	Budget       BudgetConfig      `yaml:"budget" mapstructure:"budget"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Citations    CitationConfig    `yaml:"citations" mapstructure:"citations"`
	Pipeline     PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
}

// RedditConfig controls the retrieval client
type RedditConfig struct {
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`                 // Public JSON host
	OAuthURL        string        `yaml:"oauth_url" mapstructure:"oauth_url"`               // API host used with app-only tokens
	TokenURL        string        `yaml:"token_url" mapstructure:"token_url"`               // Client-credentials endpoint
	ClientID        string        `yaml:"client_id,omitempty" mapstructure:"client_id"`     // Optional, enables OAuth mode
	ClientSecret    string        `yaml:"-" mapstructure:"client_secret"`                   // Never written to config files
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`             // Reddit rejects generic agents
	SubmissionLimit int           `yaml:"submission_limit" mapstructure:"submission_limit"` // Fetched per identity
	CommentLimit    int           `yaml:"comment_limit" mapstructure:"comment_limit"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	RespectRobots   bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// BudgetConfig bounds the evidence handed to the prompt
type BudgetConfig struct {
	BodyCap     int `yaml:"body_cap" mapstructure:"body_cap"`         // Max runes per evidence body
	MaxPosts    int `yaml:"max_posts" mapstructure:"max_posts"`       // Posts kept, newest first
	MaxComments int `yaml:"max_comments" mapstructure:"max_comments"` // Comments kept, newest first
	MaxChars    int `yaml:"max_chars" mapstructure:"max_chars"`       // Rendered evidence block cap, 0 = none
}

// LLMConfig configures the inference backend
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"` // Generation attempts on backend failure
}

// CitationPolicy decides what happens when persona text fails citation checks
type CitationPolicy string

const (
	CitationWarn   CitationPolicy = "warn"   // Keep the document, record warnings
	CitationRetry  CitationPolicy = "retry"  // Regenerate, then fall back to warn
	CitationReject CitationPolicy = "reject" // Fail the identity
)

// CitationConfig configures post-generation validation
type CitationConfig struct {
	Policy      CitationPolicy `yaml:"policy" mapstructure:"policy"`
	MaxAttempts int            `yaml:"max_attempts" mapstructure:"max_attempts"` // Total generations under the retry policy
	StrictTypes bool           `yaml:"strict_types" mapstructure:"strict_types"` // Treat a Post/Comment label mix-up as unknown
}

// PipelineConfig holds run-level policies
type PipelineConfig struct {
	AllowEmptyEvidence bool `yaml:"allow_empty_evidence" mapstructure:"allow_empty_evidence"`
}

// CacheConfig controls caching of retrieval responses
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory, disk, layered, redis
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisDB   int           `yaml:"redis_db,omitempty" mapstructure:"redis_db"`
}

// RateLimitConfig bounds request rates per backend
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Reddit
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	LLMPerSecond      float64 `yaml:"llm_per_second" mapstructure:"llm_per_second"`
	LLMBurst          int     `yaml:"llm_burst" mapstructure:"llm_burst"`
}

// ConcurrencyConfig controls batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls persistence
type OutputConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	WriteHTML bool   `yaml:"write_html" mapstructure:"write_html"`
	WriteJSON bool   `yaml:"write_json" mapstructure:"write_json"`
	Verbose   bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LogConfig selects the logger flavour
type LogConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"`   // dev or prod
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// ServerConfig configures `persona serve`
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// HTTPConfig holds transport settings shared by all outbound clients
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns the reference policy
func DefaultConfig() *Config {
	return &Config{
		Reddit: RedditConfig{
			BaseURL:         "https://www.reddit.com",
			OAuthURL:        "https://oauth.reddit.com",
			TokenURL:        "https://www.reddit.com/api/v1/access_token",
			UserAgent:       "persona/0.1 (+https://github.com/ppiankov/persona)",
			SubmissionLimit: 20,
			CommentLimit:    10,
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			RespectRobots:   true,
		},
		Budget: BudgetConfig{
			BodyCap:     500,
			MaxPosts:    20,
			MaxComments: 10,
			MaxChars:    24000,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     60,
			MaxTokens:   1500,
			Temperature: 0.7,
			MaxAttempts: 2,
		},
		Citations: CitationConfig{
			Policy:      CitationWarn,
			MaxAttempts: 2,
		},
		Pipeline: PipelineConfig{
			AllowEmptyEvidence: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "layered",
			Dir:     ".persona-cache",
			TTL:     6 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         3,
			LLMPerSecond:      2,
			LLMBurst:          2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 2,
		},
		Output: OutputConfig{
			Dir:       "sample",
			WriteJSON: true,
		},
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 3 * time.Minute,
		},
	}
}
