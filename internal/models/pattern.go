package models

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// PatternType is a recurring shape in invention histories.
type PatternType string

const (
	PatternFailureToSuccess      PatternType = "failure_to_success"
	PatternWrongGoalRightResult  PatternType = "wrong_goal_right_result"
	PatternUnexpectedObservation PatternType = "unexpected_observation"
	PatternCrossPollination      PatternType = "cross_pollination"
	PatternPrerequisiteChain     PatternType = "prerequisite_chain"
	PatternAccidentToInnovation  PatternType = "accident_to_innovation"
)

// ValidPatternTypes is the set of all valid pattern types, in canonical order.
var ValidPatternTypes = []PatternType{
	PatternFailureToSuccess,
	PatternWrongGoalRightResult,
	PatternUnexpectedObservation,
	PatternCrossPollination,
	PatternPrerequisiteChain,
	PatternAccidentToInnovation,
}

// IsValid returns true if the pattern type is recognized.
func (pt PatternType) IsValid() bool {
	for _, v := range ValidPatternTypes {
		if pt == v {
			return true
		}
	}
	return false
}

// ParsePatternType accepts "accident_to_innovation", "accident-to-innovation"
// and case variants thereof.
func ParsePatternType(s string) (PatternType, error) {
	var pt PatternType
	if err := pt.UnmarshalText([]byte(s)); err != nil {
		return "", err
	}
	return pt, nil
}

// UnmarshalText rejects values outside the fixed set. It is also used by
// encoding/json for map keys, so pattern_explanations is checked too.
func (pt *PatternType) UnmarshalText(text []byte) error {
	candidate := PatternType(normalizeTag(string(text)))
	if !candidate.IsValid() {
		return fmt.Errorf("unknown pattern type %q", string(text))
	}
	*pt = candidate
	return nil
}

// JSONSchema describes the type as a closed string enumeration.
func (PatternType) JSONSchema() *jsonschema.Schema {
	enum := make([]any, len(ValidPatternTypes))
	for i, v := range ValidPatternTypes {
		enum[i] = string(v)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// PatternExample ties a pattern to one invention. Examples appended when an
// invention is stored carry Explanation; examples produced by a
// cross-invention comparison carry Example and Impact.
type PatternExample struct {
	Invention   string `json:"invention"`
	Explanation string `json:"explanation,omitempty"`
	Example     string `json:"example,omitempty"`
	Impact      string `json:"impact,omitempty"`
}

// PatternAggregate is the cross-invention record for one pattern type.
type PatternAggregate struct {
	PatternType PatternType      `json:"pattern_type"`
	Description string           `json:"description"`
	Inventions  []string         `json:"inventions"`
	Examples    []PatternExample `json:"examples"`
	Insights    string           `json:"insights"`
}

// PatternComparison is the model's answer when asked to compare several
// inventions under one pattern.
type PatternComparison struct {
	Description string           `json:"pattern_description"`
	Examples    []PatternExample `json:"examples"`
	Insights    string           `json:"insights"`

	// Failed is set when the comparison degraded to the empty sentinel.
	Failed bool `json:"-"`
}

// FailedComparison is the sentinel returned when a comparison could not be
// produced.
func FailedComparison() PatternComparison {
	return PatternComparison{
		Description: "analysis failed",
		Examples:    []PatternExample{},
		Failed:      true,
	}
}

// PatternUpdate carries the fields written to a pattern aggregate by a
// cross-invention analysis pass.
type PatternUpdate struct {
	PatternType  PatternType
	Description  string
	Insights     string
	Examples     []PatternExample
	InventionIDs []int64

	// KeepText leaves description and insights untouched.
	KeepText bool
}
