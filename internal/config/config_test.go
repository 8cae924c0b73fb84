package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validCfg returns a fully-valid Config for mutation testing.
func validCfg() *Config {
	return &Config{
		LLM: LLMConfig{
			APIKey:          "sk-ant-1234567890abcdef",
			Model:           DefaultModel,
			MaxTokens:       DefaultMaxTokens,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Database: DatabaseConfig{URL: DefaultDatabaseURL},
		API:      APIConfig{ListenAddr: ":8000", AnalyzeRPS: 1, AnalyzeBurst: 3},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validCfg().Validate())

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"empty model":       {func(c *Config) { c.LLM.Model = " " }, "llm.model"},
		"zero max tokens":   {func(c *Config) { c.LLM.MaxTokens = 0 }, "llm.max_tokens"},
		"zero breaker":      {func(c *Config) { c.LLM.BreakerFailures = 0 }, "llm.breaker_failures"},
		"no breaker wait":   {func(c *Config) { c.LLM.BreakerTimeout = 0 }, "llm.breaker_timeout"},
		"empty db url":      {func(c *Config) { c.Database.URL = "" }, "database.url"},
		"negative rps":      {func(c *Config) { c.API.AnalyzeRPS = -1 }, "api.analyze_rps"},
		"rps without burst": {func(c *Config) { c.API.AnalyzeBurst = 0 }, "api.analyze_burst"},
		"bad level":         {func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		"bad format":        {func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validCfg()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_RateLimitDisabledNeedsNoBurst(t *testing.T) {
	cfg := validCfg()
	cfg.API.AnalyzeRPS = 0
	cfg.API.AnalyzeBurst = 0
	assert.NoError(t, cfg.Validate())
}

func TestSecretsAreMasked(t *testing.T) {
	cfg := validCfg()
	s := cfg.LLM.String()
	assert.NotContains(t, s, cfg.LLM.APIKey)
	assert.Contains(t, s, "sk-a****cdef")

	n := Neo4jConfig{URI: "bolt://localhost:7687", Password: "short"}
	assert.Contains(t, n.String(), "Password:***")
	assert.True(t, n.Enabled())
	assert.False(t, Neo4jConfig{}.Enabled())
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env-0000")
	t.Setenv("DISCOVERY_ARCHAEOLOGY_API_LISTEN_ADDR", ":9999")
	t.Setenv("DISCOVERY_ARCHAEOLOGY_DATABASE_URL", "postgres://u:p@db/arch")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env-0000", cfg.LLM.APIKey)
	assert.Equal(t, ":9999", cfg.API.ListenAddr)
	assert.Equal(t, "postgres://u:p@db/arch", cfg.Database.URL)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.BreakerTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.API.CORSOrigins)
	assert.False(t, cfg.Neo4j.Enabled())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: claude-haiku-4-5
  breaker_timeout: 1m
database:
  url: sqlite:///tmp/x.db
neo4j:
  uri: bolt://graph:7687
logging:
  format: json
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", cfg.LLM.Model)
	assert.Equal(t, time.Minute, cfg.LLM.BreakerTimeout)
	assert.Equal(t, "sqlite:///tmp/x.db", cfg.Database.URL)
	assert.True(t, cfg.Neo4j.Enabled())
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.Equal(t, "json", cfg.Logging.Format)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
