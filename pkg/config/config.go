package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderHash   = "hash"
)

type Config struct {
	LogLevel             string        `mapstructure:"log-level"`
	CorpusDriver         string        `mapstructure:"corpus-driver"`
	CorpusDSN            string        `mapstructure:"corpus-dsn"`
	TargetDriver         string        `mapstructure:"target-driver"`
	TargetDSN            string        `mapstructure:"target-dsn"`
	OpenAIAPIKey         string        `mapstructure:"openai-api-key"`
	LLMBaseURL           string        `mapstructure:"llm-base-url"`
	LLMChatModel         string        `mapstructure:"llm-chat-model"`
	LLMTemperature       float64       `mapstructure:"llm-temperature"`
	EmbeddingProvider    string        `mapstructure:"embedding-provider"`
	EmbeddingAPIKey      string        `mapstructure:"embedding-api-key"`
	EmbeddingBaseURL     string        `mapstructure:"embedding-base-url"`
	EmbeddingModel       string        `mapstructure:"embedding-model"`
	EmbeddingDimensions  int64         `mapstructure:"embedding-dimensions"`
	RetrievalK           int           `mapstructure:"retrieval-k"`
	MaxContextChars      int           `mapstructure:"max-context-chars"`
	ReadOnly             bool          `mapstructure:"read-only"`
	MaxRows              int           `mapstructure:"max-rows"`
	ServiceTimeout       time.Duration `mapstructure:"service-timeout"`
	RetryAttempts        int           `mapstructure:"retry-attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry-initial-interval"`
	SeedKnowledge        bool          `mapstructure:"seed-knowledge"`
	SetupSampleDB        bool          `mapstructure:"setup-sample-db"`
	MetricsAddr          string        `mapstructure:"metrics-addr"`
}

// Load reads flags from args, falling back to environment variables (OPENAI_API_KEY,
// TARGET_DSN, ...) and then to defaults.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("askdb", pflag.ContinueOnError)
	fs.String("log-level", "warn", "Log level (debug, info, warn, error)")

	fs.String("corpus-driver", DriverSQLite, "Training corpus database driver (sqlite3, postgres)")
	fs.String("corpus-dsn", "data/corpus.db", "Training corpus connection string or SQLite file path")
	fs.String("target-driver", DriverSQLite, "Target database driver (sqlite3, postgres)")
	fs.String("target-dsn", "data/database.db", "Target database connection string or SQLite file path")

	fs.String("openai-api-key", "", "API key for the chat model")
	fs.String("llm-base-url", "", "Base URL for the chat model API")
	fs.String("llm-chat-model", "gpt-4o", "Chat model used for SQL generation")
	fs.Float64("llm-temperature", 0, "Sampling temperature for SQL generation")

	fs.String("embedding-provider", EmbeddingProviderOpenAI, "Embedding provider (openai, hash)")
	fs.String("embedding-api-key", "", "API key for the embedding endpoint (defaults to openai-api-key)")
	fs.String("embedding-base-url", "", "Base URL for the embedding API (defaults to llm-base-url)")
	fs.String("embedding-model", "text-embedding-ada-002", "Embedding model")
	fs.Int64("embedding-dimensions", 0, "Requested embedding dimensions (0 uses the model default)")

	fs.Int("retrieval-k", 10, "Number of items retrieved per training kind")
	fs.Int("max-context-chars", 0, "Upper bound on retrieved context size in characters (0 disables)")
	fs.Bool("read-only", true, "Reject statements that write data, change schema or control transactions")
	fs.Int("max-rows", 1000, "Maximum number of rows returned per statement (0 disables)")
	fs.Duration("service-timeout", 30*time.Second, "Timeout for each embedding or generation call")
	fs.Int("retry-attempts", 3, "Attempts for a failed embedding or generation call")
	fs.Duration("retry-initial-interval", 500*time.Millisecond, "First backoff interval between attempts")

	fs.Bool("seed-knowledge", false, "Train the sample schema and example questions into an empty corpus")
	fs.Bool("setup-sample-db", false, "Create and fill the sample shop database in the target database")
	fs.String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("unable to parse flags: %w", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("unable to bind pflags: %w", err)
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if cfg.EmbeddingAPIKey == "" {
		cfg.EmbeddingAPIKey = cfg.OpenAIAPIKey
	}
	if cfg.EmbeddingBaseURL == "" {
		cfg.EmbeddingBaseURL = cfg.LLMBaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	for name, driver := range map[string]string{"corpus-driver": c.CorpusDriver, "target-driver": c.TargetDriver} {
		if driver != DriverSQLite && driver != DriverPostgres {
			return fmt.Errorf("invalid %s %q", name, driver)
		}
	}
	if c.EmbeddingProvider != EmbeddingProviderOpenAI && c.EmbeddingProvider != EmbeddingProviderHash {
		return fmt.Errorf("invalid embedding-provider %q", c.EmbeddingProvider)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval-k must be positive, got %d", c.RetrievalK)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry-attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.MaxRows < 0 || c.MaxContextChars < 0 || c.EmbeddingDimensions < 0 {
		return fmt.Errorf("max-rows, max-context-chars and embedding-dimensions must not be negative")
	}
	return nil
}

// EnsureSQLiteDir creates the parent directory of a plain SQLite file path.
func EnsureSQLiteDir(driver, dsn string) error {
	if driver != DriverSQLite || dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0o755)
}
