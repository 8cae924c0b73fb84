package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/config"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/engine"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/extract"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/graph"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/llm"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/store"
)

// version is reported by the MCP server and the HTTP root.
const version = "1.0.0"

var (
	cfg        *config.Config
	configFile string
)

var errNoAPIKey = errors.New("no Anthropic API key configured; set ANTHROPIC_API_KEY")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "discovery-archaeology",
		Short: "Discovery Archaeology: trace the accidents, failures and prerequisites behind inventions",
		Long: "Discovery Archaeology asks Claude to reconstruct how an invention came to be, stores the " +
			"structured result, and compares stored inventions to surface recurring innovation patterns.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configFile != "" {
				cfg, err = config.LoadFile(configFile)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.discovery-archaeology/config.yaml)")

	rootCmd.AddCommand(
		serveCmd(),
		mcpCmd(),
		analyzeCmd(),
		getCmd(),
		listCmd(),
		forgetCmd(),
		patternsCmd(),
		exportCmd(),
		healthCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(ctx context.Context, logger *slog.Logger) (*store.SQLStore, error) {
	return store.Open(ctx, cfg.Database.URL, logger)
}

// newGenerator builds the guarded Claude generator. Without an API key it
// returns a generator that always fails, unless requireKey is set.
func newGenerator(logger *slog.Logger, requireKey bool) (llm.Generator, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		if requireKey {
			return nil, errNoAPIKey
		}
		logger.Warn("no Anthropic API key configured; uncached analyses will fail")
		return llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return "", errNoAPIKey
		}), nil
	}
	claude := llm.NewClaudeGenerator(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, logger)
	return llm.NewBreakerGenerator(claude, llm.BreakerConfig{
		MaxFailures: cfg.LLM.BreakerFailures,
		Timeout:     cfg.LLM.BreakerTimeout,
	}, logger), nil
}

func newProjector(ctx context.Context, logger *slog.Logger) (graph.Projector, error) {
	if !cfg.Neo4j.Enabled() {
		return nil, nil
	}
	proj, err := graph.NewNeo4jProjector(ctx, graph.Config{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
		Timeout:  10 * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}
	return proj, nil
}

// newEngine wires store, model client and the optional graph mirror. The
// returned cleanup closes everything it opened.
func newEngine(ctx context.Context, logger *slog.Logger, requireKey bool) (*engine.Engine, func(), error) {
	gen, err := newGenerator(logger, requireKey)
	if err != nil {
		return nil, nil, err
	}

	st, err := newStore(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	proj, err := newProjector(ctx, logger)
	if err != nil {
		// The graph mirror is optional; run without it.
		logger.Warn("neo4j unavailable; graph projection disabled", "error", err)
		proj = nil
	}

	client := extract.NewClient(gen, cfg.LLM.MaxTokens, logger)
	eng := engine.New(st, client, client, proj, logger)

	cleanup := func() {
		if proj != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = proj.Close(closeCtx)
		}
		_ = st.Close()
	}
	return eng, cleanup, nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
