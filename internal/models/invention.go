package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// DiscoveryType classifies how a discovery came about.
type DiscoveryType string

const (
	DiscoveryAccidental       DiscoveryType = "accidental"
	DiscoveryFailedExperiment DiscoveryType = "failed_experiment"
	DiscoveryCrossDomain      DiscoveryType = "cross_domain"
	DiscoveryPrerequisite     DiscoveryType = "prerequisite"
	DiscoverySerendipitous    DiscoveryType = "serendipitous"
	DiscoveryObservation      DiscoveryType = "observation"
)

// ValidDiscoveryTypes is the set of all valid discovery types.
var ValidDiscoveryTypes = []DiscoveryType{
	DiscoveryAccidental,
	DiscoveryFailedExperiment,
	DiscoveryCrossDomain,
	DiscoveryPrerequisite,
	DiscoverySerendipitous,
	DiscoveryObservation,
}

// IsValid returns true if the discovery type is recognized.
func (dt DiscoveryType) IsValid() bool {
	for _, v := range ValidDiscoveryTypes {
		if dt == v {
			return true
		}
	}
	return false
}

// UnmarshalText rejects values outside the fixed set. Case and the
// separators "-" and " " are normalized first.
func (dt *DiscoveryType) UnmarshalText(text []byte) error {
	candidate := DiscoveryType(normalizeTag(string(text)))
	if !candidate.IsValid() {
		return fmt.Errorf("unknown discovery type %q", string(text))
	}
	*dt = candidate
	return nil
}

// JSONSchema describes the type as a closed string enumeration.
func (DiscoveryType) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(ValidDiscoveryTypes))
	for i, v := range ValidDiscoveryTypes {
		enum[i] = string(v)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// Discovery is a single event in the chain that led to an invention.
type Discovery struct {
	ID            string        `json:"id,omitempty" jsonschema_description:"Short identifier referenced by connections, e.g. d1"`
	Year          *int          `json:"year,omitempty" validate:"omitempty,min=-10000,max=2100" jsonschema_description:"Year of the discovery"`
	Title         string        `json:"title" validate:"required,notblank" jsonschema_description:"Brief title of the discovery"`
	Description   string        `json:"description" validate:"required,notblank" jsonschema_description:"Detailed description of what happened"`
	Discoverers   []string      `json:"discoverers" jsonschema_description:"People involved"`
	DiscoveryType DiscoveryType `json:"discovery_type" validate:"required" jsonschema_description:"Type of discovery"`
	OriginalGoal  *string       `json:"original_goal,omitempty" jsonschema_description:"What was originally being pursued"`
	ActualOutcome string        `json:"actual_outcome" validate:"required,notblank" jsonschema_description:"What actually happened"`
	Significance  string        `json:"significance" validate:"required,notblank" jsonschema_description:"Why this was important for the final invention"`
	Location      *string       `json:"location,omitempty" jsonschema_description:"Where this discovery occurred"`
}

// Connection is a directed edge between two discoveries of the same invention.
type Connection struct {
	FromDiscoveryID  string `json:"from_discovery_id"`
	ToDiscoveryID    string `json:"to_discovery_id"`
	RelationshipType string `json:"relationship_type" jsonschema_description:"How these discoveries are connected"`
	Description      string `json:"description" jsonschema_description:"Explanation of the connection"`
}

// InventionAnalysis is the complete structured origin story of an invention.
type InventionAnalysis struct {
	InventionName string `json:"invention_name" validate:"required,notblank,max=200" jsonschema_description:"Name of the invention"`
	InventionYear *int   `json:"invention_year,omitempty" validate:"omitempty,min=-10000,max=2100" jsonschema_description:"Year the invention was completed"`
	Summary       string `json:"summary" validate:"required,notblank" jsonschema_description:"Brief summary of the invention"`

	Discoveries []Discovery  `json:"discoveries" validate:"dive" jsonschema_description:"All discoveries that led to this invention"`
	Connections []Connection `json:"connections" jsonschema_description:"How discoveries connect"`

	PatternsIdentified  []PatternType          `json:"patterns_identified" jsonschema_description:"Patterns clearly evident in this invention's history"`
	PatternExplanations map[PatternType]string `json:"pattern_explanations" jsonschema_description:"Explanation for each identified pattern"`

	SerendipityMoments         []string `json:"serendipity_moments" jsonschema_description:"Key moments of serendipity"`
	CriticalPrerequisites      []string `json:"critical_prerequisites" jsonschema_description:"Technologies or knowledge that had to exist first"`
	ObjectiveBlindnessExamples []string `json:"objective_blindness_examples" jsonschema_description:"Examples where rigid goals missed opportunities"`

	Narrative string `json:"narrative" validate:"required,notblank" jsonschema_description:"The complete story of how this invention came to be"`
	KeyLesson string `json:"key_lesson" validate:"required,notblank" jsonschema_description:"Main lesson about innovation from this invention"`
}

// Normalize replaces nil collections with empty ones so that stored and
// freshly parsed analyses compare and serialize identically.
func (a *InventionAnalysis) Normalize() {
	if a.Discoveries == nil {
		a.Discoveries = []Discovery{}
	}
	for i := range a.Discoveries {
		if a.Discoveries[i].Discoverers == nil {
			a.Discoveries[i].Discoverers = []string{}
		}
	}
	if a.Connections == nil {
		a.Connections = []Connection{}
	}
	if a.PatternsIdentified == nil {
		a.PatternsIdentified = []PatternType{}
	}
	if a.PatternExplanations == nil {
		a.PatternExplanations = map[PatternType]string{}
	}
	if a.SerendipityMoments == nil {
		a.SerendipityMoments = []string{}
	}
	if a.CriticalPrerequisites == nil {
		a.CriticalPrerequisites = []string{}
	}
	if a.ObjectiveBlindnessExamples == nil {
		a.ObjectiveBlindnessExamples = []string{}
	}
}

// HasPattern reports whether the analysis identified the given pattern.
func (a *InventionAnalysis) HasPattern(pt PatternType) bool {
	for _, p := range a.PatternsIdentified {
		if p == pt {
			return true
		}
	}
	return false
}

// InventionRecord is a stored analysis together with its storage identity.
type InventionRecord struct {
	Analysis  InventionAnalysis `json:"analysis"`
	ID        int64             `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
}

// InventionSummary is the compact listing row for a stored invention.
type InventionSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Year      *int      `json:"year"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalyzeRequest asks for the origin story of a single invention.
type AnalyzeRequest struct {
	InventionName string   `json:"invention_name" validate:"required,notblank,max=200"`
	FocusAreas    []string `json:"focus_areas,omitempty" validate:"max=10,dive,required,notblank,max=200"`
}

// TimelineEntry is one row of the year-ordered innovation timeline.
type TimelineEntry struct {
	Year              int    `json:"year"`
	Invention         string `json:"invention"`
	KeyDiscovery      string `json:"key_discovery"`
	PatternCount      int    `json:"pattern_count"`
	PrerequisiteCount int    `json:"prerequisite_count"`
}

func normalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
