package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/persona/internal/logging"
	"github.com/ppiankov/persona/internal/model"
)

// Version is set at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool

	// Populated by PersistentPreRunE for every subcommand
	cfg    *model.Config
	logger *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "persona",
	Short: "Persona - evidence-grounded user personas from public Reddit activity",
	Long: `Persona builds a user persona from a Reddit account's recent public posts
and comments.

Every characteristic in the persona cites the Post or Comment ID it was
inferred from, and each citation is checked against the retrieved evidence.

Statements are AI-inferred. Persona describes public activity, it does not
verify identity.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	defer func() { logger.Sync() }()
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Persona.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("persona %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.persona/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.String("log-mode", "dev", "log format: dev (console) or prod (JSON)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("provider", "openai", "LLM provider (openai, anthropic, ollama)")
	flags.String("model", "gpt-4o-mini", "LLM model name")
	flags.String("output-dir", "sample", "directory for persona files")
	flags.String("citation-policy", "warn", "what to do with citation problems: warn, retry, reject")
	flags.Bool("no-cache", false, "disable the response cache (force fresh fetch)")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Bind flags to viper
	bindFlag("verbose", "verbose")
	bindFlag("log.mode", "log-mode")
	bindFlag("log.level", "log-level")
	bindFlag("llm.provider", "provider")
	bindFlag("llm.model", "model")
	bindFlag("output.dir", "output-dir")
	bindFlag("citations.policy", "citation-policy")
	bindFlag("no_cache", "no-cache")
	bindFlag("http.http_proxy", "http-proxy")
	bindFlag("http.https_proxy", "https-proxy")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".persona"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureViper(viper.GetViper())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper registers defaults and environment bindings.
// PERSONA_LLM_MODEL overrides llm.model, PERSONA_REDDIT_CLIENT_ID overrides reddit.client_id, and so on.
func configureViper(v *viper.Viper) {
	v.SetEnvPrefix("PERSONA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, model.DefaultConfig())

	// Conventional variable names, honoured when the PERSONA_ form is unset
	_ = v.BindEnv("reddit.client_id", "PERSONA_REDDIT_CLIENT_ID", "REDDIT_CLIENT_ID")
	_ = v.BindEnv("reddit.client_secret", "PERSONA_REDDIT_CLIENT_SECRET", "REDDIT_CLIENT_SECRET")
	_ = v.BindEnv("reddit.user_agent", "PERSONA_REDDIT_USER_AGENT", "REDDIT_USER_AGENT")
	_ = v.BindEnv("llm.api_key", "PERSONA_LLM_API_KEY")
	_ = v.BindEnv("http.http_proxy", "PERSONA_HTTP_HTTP_PROXY", "HTTP_PROXY")
	_ = v.BindEnv("http.https_proxy", "PERSONA_HTTP_HTTPS_PROXY", "HTTPS_PROXY")
	_ = v.BindEnv("http.no_proxy", "PERSONA_HTTP_NO_PROXY", "NO_PROXY")
}

// setDefaults registers every config key so environment variables reach Unmarshal
func setDefaults(v *viper.Viper, d *model.Config) {
	v.SetDefault("reddit.base_url", d.Reddit.BaseURL)
	v.SetDefault("reddit.oauth_url", d.Reddit.OAuthURL)
	v.SetDefault("reddit.token_url", d.Reddit.TokenURL)
	v.SetDefault("reddit.client_id", d.Reddit.ClientID)
	v.SetDefault("reddit.client_secret", d.Reddit.ClientSecret)
	v.SetDefault("reddit.user_agent", d.Reddit.UserAgent)
	v.SetDefault("reddit.submission_limit", d.Reddit.SubmissionLimit)
	v.SetDefault("reddit.comment_limit", d.Reddit.CommentLimit)
	v.SetDefault("reddit.timeout", d.Reddit.Timeout)
	v.SetDefault("reddit.max_retries", d.Reddit.MaxRetries)
	v.SetDefault("reddit.respect_robots", d.Reddit.RespectRobots)

	v.SetDefault("budget.body_cap", d.Budget.BodyCap)
	v.SetDefault("budget.max_posts", d.Budget.MaxPosts)
	v.SetDefault("budget.max_comments", d.Budget.MaxComments)
	v.SetDefault("budget.max_chars", d.Budget.MaxChars)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_attempts", d.LLM.MaxAttempts)

	v.SetDefault("citations.policy", string(d.Citations.Policy))
	v.SetDefault("citations.max_attempts", d.Citations.MaxAttempts)
	v.SetDefault("citations.strict_types", d.Citations.StrictTypes)

	v.SetDefault("pipeline.allow_empty_evidence", d.Pipeline.AllowEmptyEvidence)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)

	v.SetDefault("rate_limiting.requests_per_second", d.RateLimiting.RequestsPerSecond)
	v.SetDefault("rate_limiting.burst_size", d.RateLimiting.BurstSize)
	v.SetDefault("rate_limiting.llm_per_second", d.RateLimiting.LLMPerSecond)
	v.SetDefault("rate_limiting.llm_burst", d.RateLimiting.LLMBurst)

	v.SetDefault("concurrency.workers", d.Concurrency.Workers)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.write_html", d.Output.WriteHTML)
	v.SetDefault("output.write_json", d.Output.WriteJSON)
	v.SetDefault("output.verbose", d.Output.Verbose)

	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)

	v.SetDefault("http.http_proxy", d.HTTP.HTTPProxy)
	v.SetDefault("http.https_proxy", d.HTTP.HTTPSProxy)
	v.SetDefault("http.no_proxy", d.HTTP.NoProxy)
}

// loadConfig resolves the effective configuration from v
func loadConfig(v *viper.Viper) (*model.Config, error) {
	c := model.DefaultConfig()
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if v.GetBool("no_cache") {
		c.Cache.Enabled = false
	}
	if v.GetBool("verbose") {
		c.Output.Verbose = true
		c.Log.Level = "debug"
	}

	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	resolveLLMDefaults(c)

	switch c.Citations.Policy {
	case model.CitationWarn, model.CitationRetry, model.CitationReject:
	default:
		return nil, fmt.Errorf("invalid citation policy %q (want warn, retry or reject)", c.Citations.Policy)
	}
	return c, nil
}

// resolveLLMDefaults fills provider-specific model names and credentials from the
// conventional environment variables
func resolveLLMDefaults(c *model.Config) {
	openaiModel := model.DefaultConfig().LLM.Model

	switch c.LLM.Provider {
	case "anthropic", "claude":
		if c.LLM.Model == openaiModel {
			c.LLM.Model = "" // provider default
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if c.LLM.Model == openaiModel {
			c.LLM.Model = "llama3.1"
		}
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	default:
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// setup loads configuration and builds the logger before any subcommand runs
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return err
	}
	logger = l
	return nil
}
