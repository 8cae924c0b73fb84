package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

func TestBuildParams(t *testing.T) {
	year := 1947
	loc := "Waltham"
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &models.InventionRecord{
		ID:        7,
		CreatedAt: created,
		Analysis: models.InventionAnalysis{
			InventionName: "Microwave Oven",
			InventionYear: &year,
			Summary:       "s",
			KeyLesson:     "k",
			Discoveries: []models.Discovery{
				{ID: "11", Title: "Magnetron", DiscoveryType: models.DiscoveryPrerequisite, Discoverers: []string{"Randall"}},
				{ID: "12", Title: "Melted bar", DiscoveryType: models.DiscoveryAccidental, Location: &loc},
				{ID: "not-a-row", Title: "ignored"},
			},
			Connections: []models.Connection{
				{FromDiscoveryID: "11", ToDiscoveryID: "12", RelationshipType: "enabled"},
				{FromDiscoveryID: "11", ToDiscoveryID: "not-a-row"},
			},
			PatternsIdentified:  []models.PatternType{models.PatternAccidentToInnovation},
			PatternExplanations: map[models.PatternType]string{models.PatternAccidentToInnovation: "chocolate"},
		},
	}

	p := BuildParams(rec, created.Add(time.Hour))

	assert.Equal(t, int64(7), p.Invention["id"])
	assert.Equal(t, int64(1947), p.Invention["year"])
	assert.Equal(t, "2024-05-01T13:00:00Z", p.Invention["synced_at"])

	require.Len(t, p.Discoveries, 2)
	assert.Equal(t, int64(11), p.Discoveries[0]["id"])
	assert.Equal(t, int64(1), p.Discoveries[1]["position"])
	assert.Equal(t, "Waltham", p.Discoveries[1]["location"])
	assert.NotContains(t, p.Discoveries[0], "year")
	assert.Equal(t, []string{}, p.Discoveries[1]["discoverers"])

	require.Len(t, p.Connections, 1)
	assert.Equal(t, int64(11), p.Connections[0]["from"])
	assert.Equal(t, int64(12), p.Connections[0]["to"])

	require.Len(t, p.Patterns, 1)
	assert.Equal(t, "chocolate", p.Patterns[0]["explanation"])

	m := p.Map()
	assert.Contains(t, m, "invention")
	assert.Contains(t, m, "connections")
}
