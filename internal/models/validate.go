package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// ValidationError lists every schema violation found in a value.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

// Unwrap lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validate checks field-level constraints of the analysis.
func (a *InventionAnalysis) Validate() error {
	var problems []string
	problems = append(problems, structProblems(a)...)

	for i := range a.Discoveries {
		if !a.Discoveries[i].DiscoveryType.IsValid() {
			problems = append(problems, fmt.Sprintf("discoveries[%d].discovery_type %q is not a known discovery type", i, a.Discoveries[i].DiscoveryType))
		}
	}
	for i, p := range a.PatternsIdentified {
		if !p.IsValid() {
			problems = append(problems, fmt.Sprintf("patterns_identified[%d] %q is not a known pattern type", i, p))
		}
	}
	for k := range a.PatternExplanations {
		if !k.IsValid() {
			problems = append(problems, fmt.Sprintf("pattern_explanations key %q is not a known pattern type", k))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Validate checks the request before any model call is made.
func (r *AnalyzeRequest) Validate() error {
	if problems := structProblems(r); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func structProblems(s any) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, formatFieldError(fe))
	}
	return problems
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
