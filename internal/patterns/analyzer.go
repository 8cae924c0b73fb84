// Package patterns derives cross-invention views from stored analyses:
// per-pattern comparisons, theme buckets and the innovation timeline.
package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/extract"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/metrics"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/store"
)

// Theme labels produced by CommonThemes.
const (
	ThemeAccidental    = "Accidental Discoveries"
	ThemeFailures      = "Failures Leading to Success"
	ThemePrerequisites = "Built on Prerequisites"
	ThemeMissed        = "Missed Initial Opportunities"
)

// minInventions is the smallest group worth comparing.
const minInventions = 2

// unknownDiscovery stands in for the key discovery of an invention that has none.
const unknownDiscovery = "Unknown"

// Analyzer computes pattern aggregates across stored inventions.
type Analyzer struct {
	store    store.Store
	comparer extract.Comparer
	logger   *slog.Logger
}

// NewAnalyzer creates a pattern analyzer.
func NewAnalyzer(st store.Store, comparer extract.Comparer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		store:    st,
		comparer: comparer,
		logger:   logger,
	}
}

// AnalyzeAll runs one comparison per pattern that at least two stored
// inventions share, writes the result to that pattern's aggregate, and
// returns the updated aggregates in canonical pattern order. With fewer
// than two stored inventions it returns an empty list.
func (a *Analyzer) AnalyzeAll(ctx context.Context) ([]models.PatternAggregate, error) {
	records, err := a.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing inventions: %w", err)
	}
	out := []models.PatternAggregate{}
	if len(records) < minInventions {
		a.logger.Info("pattern analysis skipped", "inventions", len(records))
		return out, nil
	}
	metrics.Inc(metrics.PatternRuns)

	for _, pt := range models.ValidPatternTypes {
		var (
			names []string
			ids   []int64
		)
		for i := range records {
			if records[i].Analysis.HasPattern(pt) {
				names = append(names, records[i].Analysis.InventionName)
				ids = append(ids, records[i].ID)
			}
		}
		if len(names) < minInventions {
			continue
		}

		cmp := a.comparer.ComparePattern(ctx, names, pt)
		agg, err := a.store.UpdatePatternAggregate(ctx, models.PatternUpdate{
			PatternType:  pt,
			Description:  cmp.Description,
			Insights:     cmp.Insights,
			Examples:     cmp.Examples,
			InventionIDs: ids,
			KeepText:     cmp.Failed,
		})
		if err != nil {
			return nil, fmt.Errorf("updating pattern %s: %w", pt, err)
		}
		a.logger.Info("pattern aggregate updated", "pattern", pt, "inventions", len(names), "degraded", cmp.Failed)
		out = append(out, *agg)
	}
	return out, nil
}

// CommonThemes buckets invention names under fixed theme labels. Names
// within a bucket are unique and in storage order.
func (a *Analyzer) CommonThemes(ctx context.Context) (map[string][]string, error) {
	records, err := a.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing inventions: %w", err)
	}

	themes := map[string][]string{}
	add := func(theme, name string) {
		for _, existing := range themes[theme] {
			if existing == name {
				return
			}
		}
		themes[theme] = append(themes[theme], name)
	}

	for i := range records {
		inv := &records[i].Analysis
		for _, moment := range inv.SerendipityMoments {
			lower := strings.ToLower(moment)
			if strings.Contains(lower, "accident") {
				add(ThemeAccidental, inv.InventionName)
			}
			if strings.Contains(lower, "fail") {
				add(ThemeFailures, inv.InventionName)
			}
		}
		if len(inv.CriticalPrerequisites) > 0 {
			add(ThemePrerequisites, inv.InventionName)
		}
		if len(inv.ObjectiveBlindnessExamples) > 0 {
			add(ThemeMissed, inv.InventionName)
		}
	}
	return themes, nil
}

// Timeline lists inventions with a known year in ascending year order.
// Inventions sharing a year keep storage order.
func (a *Analyzer) Timeline(ctx context.Context) ([]models.TimelineEntry, error) {
	records, err := a.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing inventions: %w", err)
	}

	out := []models.TimelineEntry{}
	for i := range records {
		inv := &records[i].Analysis
		if inv.InventionYear == nil {
			continue
		}
		key := unknownDiscovery
		if len(inv.Discoveries) > 0 {
			key = inv.Discoveries[0].Title
		}
		out = append(out, models.TimelineEntry{
			Year:              *inv.InventionYear,
			Invention:         inv.InventionName,
			KeyDiscovery:      key,
			PatternCount:      len(inv.PatternsIdentified),
			PrerequisiteCount: len(inv.CriticalPrerequisites),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}
