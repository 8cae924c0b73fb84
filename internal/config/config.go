package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultModel is the Claude model used for extraction.
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens bounds a single analysis response.
	DefaultMaxTokens = 16000

	// DefaultDatabaseURL keeps data in a SQLite file in the working directory.
	DefaultDatabaseURL = "sqlite://discovery_archaeology.db"
)

// Config holds all configuration for the discovery archaeology service.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Database DatabaseConfig `mapstructure:"database"`
	API      APIConfig      `mapstructure:"api"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LLMConfig holds Anthropic Claude API settings.
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	MaxTokens       int64         `mapstructure:"max_tokens"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// String returns a safe representation of LLMConfig with the API key masked.
func (c LLMConfig) String() string {
	return fmt.Sprintf("LLMConfig{APIKey:%s, Model:%s, MaxTokens:%d}", maskSecret(c.APIKey), c.Model, c.MaxTokens)
}

// DatabaseConfig selects the relational store. postgres:// URLs use
// PostgreSQL; anything else is a SQLite path.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr   string   `mapstructure:"listen_addr"`
	AuthToken    string   `mapstructure:"auth_token"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	AnalyzeRPS   float64  `mapstructure:"analyze_rps"`
	AnalyzeBurst int      `mapstructure:"analyze_burst"`
}

// Neo4jConfig enables the optional graph mirror when URI is set.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// Enabled reports whether a graph mirror is configured.
func (c Neo4jConfig) Enabled() bool { return strings.TrimSpace(c.URI) != "" }

// String masks the password.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, User:%s, Password:%s, Database:%s}", c.URI, c.User, maskSecret(c.Password), c.Database)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// maskSecret shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskSecret(key string) string {
	const visible = 4
	if key == "" {
		return ""
	}
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".discovery-archaeology"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("DISCOVERY_ARCHAEOLOGY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("llm.api_key", "ANTHROPIC_API_KEY", "DISCOVERY_ARCHAEOLOGY_LLM_API_KEY")
	_ = v.BindEnv("database.url", "DISCOVERY_ARCHAEOLOGY_DATABASE_URL", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults + env vars
	}

	return decode(v)
}

// LoadFile reads configuration from an explicit YAML file on top of defaults.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.max_tokens", DefaultMaxTokens)
	v.SetDefault("llm.breaker_failures", 3)
	v.SetDefault("llm.breaker_timeout", 30*time.Second)

	v.SetDefault("database.url", DefaultDatabaseURL)

	v.SetDefault("api.listen_addr", ":8000")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.analyze_rps", 1.0)
	v.SetDefault("api.analyze_burst", 3)

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
// The API key is not required here; commands that call the model check it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be greater than 0")
	}
	if c.LLM.BreakerFailures == 0 {
		return fmt.Errorf("llm.breaker_failures must be greater than 0")
	}
	if c.LLM.BreakerTimeout <= 0 {
		return fmt.Errorf("llm.breaker_timeout must be positive")
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	if c.API.AnalyzeRPS < 0 {
		return fmt.Errorf("api.analyze_rps must be >= 0")
	}
	if c.API.AnalyzeRPS > 0 && c.API.AnalyzeBurst <= 0 {
		return fmt.Errorf("api.analyze_burst must be greater than 0 when api.analyze_rps is set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
