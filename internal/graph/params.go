package graph

import (
	"strconv"
	"time"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

// Params is the Cypher parameter set for projecting one invention.
type Params struct {
	Invention   map[string]any
	Discoveries []map[string]any
	Connections []map[string]any
	Patterns    []map[string]any
}

// Map returns the parameters keyed as the projection queries expect.
func (p Params) Map() map[string]any {
	return map[string]any{
		"invention":   p.Invention,
		"discoveries": p.Discoveries,
		"connections": p.Connections,
		"patterns":    p.Patterns,
	}
}

// BuildParams flattens a stored record into driver-friendly values. Discovery
// node ids are the stored row ids, which are globally unique.
func BuildParams(rec *models.InventionRecord, syncedAt time.Time) Params {
	a := &rec.Analysis
	synced := syncedAt.UTC().Format(time.RFC3339Nano)

	inv := map[string]any{
		"id":         rec.ID,
		"name":       a.InventionName,
		"summary":    a.Summary,
		"key_lesson": a.KeyLesson,
		"created_at": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		"synced_at":  synced,
	}
	if a.InventionYear != nil {
		inv["year"] = int64(*a.InventionYear)
	}

	known := make(map[string]int64, len(a.Discoveries))
	discoveries := make([]map[string]any, 0, len(a.Discoveries))
	for i, d := range a.Discoveries {
		id, err := strconv.ParseInt(d.ID, 10, 64)
		if err != nil {
			continue
		}
		known[d.ID] = id
		node := map[string]any{
			"id":             id,
			"position":       int64(i),
			"title":          d.Title,
			"discovery_type": string(d.DiscoveryType),
			"significance":   d.Significance,
			"discoverers":    append([]string{}, d.Discoverers...),
			"synced_at":      synced,
		}
		if d.Year != nil {
			node["year"] = int64(*d.Year)
		}
		if d.Location != nil {
			node["location"] = *d.Location
		}
		discoveries = append(discoveries, node)
	}

	connections := make([]map[string]any, 0, len(a.Connections))
	for _, c := range a.Connections {
		from, okFrom := known[c.FromDiscoveryID]
		to, okTo := known[c.ToDiscoveryID]
		if !okFrom || !okTo {
			continue
		}
		connections = append(connections, map[string]any{
			"from":              from,
			"to":                to,
			"relationship_type": c.RelationshipType,
			"description":       c.Description,
		})
	}

	patterns := make([]map[string]any, 0, len(a.PatternsIdentified))
	for _, pt := range a.PatternsIdentified {
		patterns = append(patterns, map[string]any{
			"type":        string(pt),
			"explanation": a.PatternExplanations[pt],
		})
	}

	return Params{Invention: inv, Discoveries: discoveries, Connections: connections, Patterns: patterns}
}
