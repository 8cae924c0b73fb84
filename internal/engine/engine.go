// Package engine is the service facade shared by the HTTP, MCP and CLI
// surfaces. It owns no state beyond its collaborators.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/extract"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/graph"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/metrics"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/patterns"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/store"
)

// Engine orchestrates extraction, persistence and pattern analysis.
type Engine struct {
	store     store.Store
	extractor extract.Analyzer
	patterns  *patterns.Analyzer
	graph     graph.Projector
	logger    *slog.Logger
}

// New creates an engine. proj may be nil when no graph mirror is configured.
func New(st store.Store, extractor extract.Analyzer, comparer extract.Comparer, proj graph.Projector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     st,
		extractor: extractor,
		patterns:  patterns.NewAnalyzer(st, comparer, logger),
		graph:     proj,
		logger:    logger,
	}
}

// Analyze returns the stored analysis for req.InventionName, extracting and
// storing it first when it is not cached. Calling it twice with the same
// name yields the same record.
func (e *Engine) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.InventionRecord, error) {
	req.InventionName = strings.TrimSpace(req.InventionName)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	metrics.Inc(metrics.AnalyzeTotal)

	rec, err := e.store.GetByName(ctx, req.InventionName)
	if err == nil {
		metrics.Inc(metrics.CacheHits)
		e.logger.Info("analysis served from store", "invention", req.InventionName, "id", rec.ID)
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	analysis, err := e.extractor.AnalyzeInvention(ctx, req.InventionName, req.FocusAreas)
	if err != nil {
		return nil, err
	}

	rec, created, err := e.store.Save(ctx, analysis)
	if err != nil {
		return nil, fmt.Errorf("saving %q: %w", req.InventionName, err)
	}
	if !created {
		// A concurrent request stored the same name first; its result wins.
		e.logger.Info("analysis discarded, name already stored", "invention", req.InventionName, "id", rec.ID)
		return rec, nil
	}

	e.project(ctx, rec)
	e.logger.Info("analysis stored", "invention", req.InventionName, "id", rec.ID,
		"discoveries", len(rec.Analysis.Discoveries), "connections", len(rec.Analysis.Connections))
	return rec, nil
}

func (e *Engine) project(ctx context.Context, rec *models.InventionRecord) {
	if e.graph == nil {
		return
	}
	if err := e.graph.Project(ctx, rec); err != nil {
		metrics.Inc(metrics.GraphSyncFailures)
		e.logger.Warn("graph projection failed", "id", rec.ID, "error", err)
	}
}

// Get returns a stored invention or store.ErrNotFound.
func (e *Engine) Get(ctx context.Context, id int64) (*models.InventionRecord, error) {
	return e.store.Get(ctx, id)
}

// List returns summaries of all stored inventions.
func (e *Engine) List(ctx context.Context) ([]models.InventionSummary, error) {
	return e.store.List(ctx)
}

// Records returns every stored invention in full.
func (e *Engine) Records(ctx context.Context) ([]models.InventionRecord, error) {
	return e.store.ListRecords(ctx)
}

// Patterns returns the stored pattern aggregates.
func (e *Engine) Patterns(ctx context.Context) ([]models.PatternAggregate, error) {
	return e.store.ListPatterns(ctx)
}

// AnalyzePatterns runs the cross-invention comparison pass.
func (e *Engine) AnalyzePatterns(ctx context.Context) ([]models.PatternAggregate, error) {
	return e.patterns.AnalyzeAll(ctx)
}

// Themes groups stored inventions under common theme labels.
func (e *Engine) Themes(ctx context.Context) (map[string][]string, error) {
	return e.patterns.CommonThemes(ctx)
}

// Timeline lists dated inventions in year order.
func (e *Engine) Timeline(ctx context.Context) ([]models.TimelineEntry, error) {
	return e.patterns.Timeline(ctx)
}

// Delete removes a stored invention and, best effort, its graph mirror.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	if e.graph != nil {
		if err := e.graph.Remove(ctx, id); err != nil {
			metrics.Inc(metrics.GraphSyncFailures)
			e.logger.Warn("graph removal failed", "id", id, "error", err)
		}
	}
	e.logger.Info("invention deleted", "id", id)
	return nil
}

// Health reports whether the store is reachable.
func (e *Engine) Health(ctx context.Context) error {
	return e.store.Ping(ctx)
}
