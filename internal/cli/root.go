package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/regdiff/internal/model"
)

// version is set at build time with -ldflags "-X github.com/ppiankov/regdiff/internal/cli.version=..."
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "regdiff",
	Short: "regdiff - deterministic change classification for regulatory documents",
	Long: `regdiff compares two versions of a regulatory document section by section.

It aligns sections across renumbering, classifies every difference as a
substantive rule change, a structural change, a wording change or an
extraction artifact, and ranks the substantive ones by operational impact.

Classification is rule-based and deterministic. Optional embeddings only
sharpen the semantic similarity; an optional LLM narrative is written to a
separate file and never changes the change list.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of regdiff.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "regdiff %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.regdiff/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(viper.GetViper(), model.DefaultConfig())

	// Read in environment variables that match REGDIFF_*, e.g. REGDIFF_LLM_PROVIDER
	viper.SetEnvPrefix("REGDIFF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Legacy toggles
	_ = viper.BindEnv("embedding.enabled", "REGDIFF_EMBEDDING_ENABLED", "ENABLE_EMBEDDINGS")
	_ = viper.BindEnv("embedding.model", "REGDIFF_EMBEDDING_MODEL", "SEMANTIC_MODEL")

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".regdiff"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so AutomaticEnv and Unmarshal see
// keys that no config file mentions. Keys omitted from the YAML form (empty
// secrets, proxies) are bound explicitly.
func setDefaults(v *viper.Viper, cfg model.Config) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setTree(v, "", tree)

	for _, key := range []string{
		"embedding.base_url", "embedding.api_key",
		"llm.api_key", "llm.base_url",
		"http.http_proxy", "http.https_proxy", "http.no_proxy",
	} {
		v.SetDefault(key, "")
	}
}

func setTree(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setTree(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// flagKeys maps command flags to config keys. Each command binds only the
// flags it declares, just before loading the config.
var flagKeys = map[string]string{
	"log-level":          "logging.level",
	"log-format":         "logging.format",
	"verbose":            "output.verbose",
	"http-timeout":       "http.timeout",
	"ua":                 "http.user_agent",
	"max-bytes":          "http.max_body_bytes",
	"insecure":           "http.insecure_tls",
	"http-proxy":         "http.http_proxy",
	"https-proxy":        "http.https_proxy",
	"no-proxy":           "http.no_proxy",
	"strict":             "validation.strict_mode",
	"include-non-true":   "validation.include_non_true",
	"max-true-changes":   "validation.max_true_changes",
	"match-threshold":    "matching.match_threshold",
	"embeddings":         "embedding.enabled",
	"embedding-provider": "embedding.provider",
	"embedding-model":    "embedding.model",
	"llm-provider":       "llm.provider",
	"llm-model":          "llm.model",
	"workers":            "concurrency.workers",
	"concurrency":        "concurrency.batch_workers",
	"format":             "output.format",
	"output-dir":         "output.dir",
	"cache-dir":          "cache.dir",
	"addr":               "server.addr",
}

// addCompareFlags declares the flags shared by compare, batch, watch and serve
func addCompareFlags(flags *pflag.FlagSet) {
	d := model.DefaultConfig()

	// HTTP flags
	flags.Duration("http-timeout", d.HTTP.Timeout, "timeout for each remote document request")
	flags.String("ua", d.HTTP.UserAgent, "HTTP User-Agent")
	flags.Int64("max-bytes", d.HTTP.MaxBodyBytes, "max response bytes to read")
	flags.Bool("insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.String("no-proxy", "", "hosts that bypass the proxy")
	flags.Bool("no-robots", false, "do not consult robots.txt for remote documents")

	// Classification flags
	flags.Bool("strict", d.Validation.StrictMode, "hide changes that are not TRUE_CHANGE")
	flags.Bool("include-non-true", d.Validation.IncludeNonTrue, "report structural and wording changes too")
	flags.Int("max-true-changes", d.Validation.MaxTrueChanges, "TRUE_CHANGE records kept when the volume cap triggers")
	flags.Float64("match-threshold", d.Matching.MatchThreshold, "minimum combined similarity for a section match")
	flags.Int("workers", d.Concurrency.Workers, "pair scoring workers (0 = number of CPUs)")

	// Embedding flags
	flags.Bool("embeddings", d.Embedding.Enabled, "augment semantic similarity with embeddings")
	flags.String("embedding-provider", d.Embedding.Provider, "embedding provider (ollama, openai)")
	flags.String("embedding-model", d.Embedding.Model, "embedding model name")
	flags.String("cache-dir", "", "embedding cache directory (default: $HOME/.regdiff/cache)")
	flags.Bool("no-cache", false, "disable the embedding cache")

	// LLM flags
	flags.Bool("llm", false, "enable LLM summary generation")
	flags.String("llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	flags.String("llm-model", "", "LLM model name")

	// Report flags
	flags.Bool("no-footer", false, "disable footer in Markdown reports")
	flags.Bool("no-summaries", false, "omit templated change descriptions")
}

// loadConfig layers flags over env, config file and defaults, then validates
func loadConfig(cmd *cobra.Command) (model.Config, error) {
	flags := cmd.Flags()
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return model.Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return model.Config{}, fmt.Errorf("load config: %w", err)
	}

	// Negative switches
	if changed(flags, "no-robots") {
		cfg.HTTP.RespectRobots = false
	}
	if changed(flags, "no-cache") {
		cfg.Cache.Enabled = false
	}
	if changed(flags, "no-footer") {
		cfg.Output.IncludeFooter = false
	}
	if changed(flags, "no-summaries") {
		cfg.Output.Summaries = false
	}
	if err := resolveLLM(flags, &cfg); err != nil {
		return model.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// resolveLLM applies --llm and reads provider API keys from the environment
func resolveLLM(flags *pflag.FlagSet, cfg *model.Config) error {
	if changed(flags, "llm") && cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Provider == "" {
		return nil
	}
	cfg.LLM.StrictEvidence = true // Always enforce

	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "gpt-4o-mini"
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// newLogger builds the slog handler named by the logging config
func newLogger(cfg model.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
