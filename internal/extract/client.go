// Package extract asks a text generator for structured invention analyses
// and coerces the free-form responses into the domain schema.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/llm"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/metrics"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

// comparisonMaxTokens bounds the cross-invention comparison response.
const comparisonMaxTokens = 4096

// ErrExtraction is matched by every *Error.
var ErrExtraction = errors.New("extraction failed")

// Error reports a failed extraction. Err is the model call error or, when
// the response could not be parsed, the strict parse error.
type Error struct {
	Invention string
	Raw       string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extracting %q: %v", e.Invention, e.Err)
}

// Unwrap exposes both ErrExtraction and the underlying cause.
func (e *Error) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// Analyzer produces a full invention analysis.
type Analyzer interface {
	AnalyzeInvention(ctx context.Context, name string, focusAreas []string) (*models.InventionAnalysis, error)
}

// Comparer compares several inventions under one pattern. It never fails;
// a degraded result has Failed set.
type Comparer interface {
	ComparePattern(ctx context.Context, inventions []string, pt models.PatternType) models.PatternComparison
}

// Client implements Analyzer and Comparer on top of an llm.Generator.
type Client struct {
	gen       llm.Generator
	maxTokens int64
	logger    *slog.Logger
}

// NewClient creates an extraction client. maxTokens <= 0 leaves the limit to
// the generator.
func NewClient(gen llm.Generator, maxTokens int64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gen: gen, maxTokens: maxTokens, logger: logger}
}

// AnalyzeInvention makes one model call and parses the answer. The returned
// analysis always carries the requested name so that lookups by name stay
// stable across calls.
func (c *Client) AnalyzeInvention(ctx context.Context, name string, focusAreas []string) (*models.InventionAnalysis, error) {
	name = strings.TrimSpace(name)

	raw, err := c.gen.Generate(ctx, llm.Request{
		System:    analysisSystem(),
		Prompt:    analysisPrompt(name, focusAreas),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		metrics.Inc(metrics.ExtractionFailures)
		return nil, &Error{Invention: name, Err: fmt.Errorf("model call: %w", err)}
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		metrics.Inc(metrics.ExtractionFailures)
		c.logger.Warn("extraction: unparsable model response", "invention", name, "error", err, "chars", len(raw))
		return nil, &Error{Invention: name, Raw: raw, Err: err}
	}

	if analysis.InventionName != name {
		c.logger.Debug("extraction: model renamed invention", "requested", name, "returned", analysis.InventionName)
		analysis.InventionName = name
	}

	c.logger.Info("extracted invention analysis",
		"invention", name,
		"discoveries", len(analysis.Discoveries),
		"connections", len(analysis.Connections),
		"patterns", len(analysis.PatternsIdentified),
	)
	return analysis, nil
}

// ComparePattern asks the model how the pattern shows up in each invention.
// Any failure degrades to models.FailedComparison.
func (c *Client) ComparePattern(ctx context.Context, inventions []string, pt models.PatternType) models.PatternComparison {
	raw, err := c.gen.Generate(ctx, llm.Request{
		System:    comparisonSystem(pt),
		Prompt:    comparisonPrompt(inventions, pt),
		MaxTokens: comparisonMaxTokens,
	})
	if err != nil {
		c.logger.Warn("pattern comparison: model call failed", "pattern", pt, "error", err)
		return models.FailedComparison()
	}

	cmp, err := ParseComparison(raw)
	if err != nil {
		c.logger.Warn("pattern comparison: unparsable model response", "pattern", pt, "error", err)
		return models.FailedComparison()
	}

	c.logger.Info("compared pattern across inventions", "pattern", pt, "inventions", len(inventions), "examples", len(cmp.Examples))
	return cmp
}
