package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

var errNoObject = errors.New("no JSON object found in response")

var errNoDescription = errors.New("comparison has no pattern_description")

// ParseAnalysis turns a raw model response into a validated analysis.
// The whole response is first decoded strictly. If that fails, the text
// between the first '{' and the last '}' is decoded as a generic document
// and the analysis is built from it. When both fail the strict error is
// returned.
func ParseAnalysis(raw string) (*models.InventionAnalysis, error) {
	a, strictErr := parseAnalysisStrict(raw)
	if strictErr == nil {
		return a, nil
	}
	doc, err := embeddedDocument(raw)
	if err != nil {
		return nil, strictErr
	}
	a, err = analysisFromDocument(doc)
	if err != nil {
		return nil, strictErr
	}
	return a, nil
}

// ParseComparison is the two-tier parse for pattern comparison responses.
// A response without a pattern description is rejected.
func ParseComparison(raw string) (models.PatternComparison, error) {
	var c models.PatternComparison
	strictErr := decodeStrict(raw, &c)
	if strictErr != nil {
		doc, err := embeddedDocument(raw)
		if err != nil {
			return models.PatternComparison{}, strictErr
		}
		c = models.PatternComparison{}
		if err := fromDocument(doc, &c); err != nil {
			return models.PatternComparison{}, strictErr
		}
	}
	if strings.TrimSpace(c.Description) == "" {
		return models.PatternComparison{}, errNoDescription
	}
	if c.Examples == nil {
		c.Examples = []models.PatternExample{}
	}
	return c, nil
}

func parseAnalysisStrict(raw string) (*models.InventionAnalysis, error) {
	var a models.InventionAnalysis
	if err := decodeStrict(raw, &a); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.Normalize()
	return &a, nil
}

func analysisFromDocument(doc map[string]any) (*models.InventionAnalysis, error) {
	var a models.InventionAnalysis
	if err := fromDocument(doc, &a); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.Normalize()
	return &a, nil
}

// decodeStrict requires the entire input to be exactly one JSON value whose
// keys all map to fields of v.
func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("strict decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("strict decode: trailing data after JSON value")
	}
	return nil
}

// embeddedDocument slices from the first '{' to the last '}' and parses the
// result as a generic key-value document.
func embeddedDocument(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, errNoObject
	}
	var doc map[string]any
	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("fallback decode: %w", err)
	}
	return doc, nil
}

// fromDocument builds v from a generic document. Unknown keys are ignored.
func fromDocument(doc map[string]any, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("re-encoding document: %w", err)
	}
	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		return fmt.Errorf("building from document: %w", err)
	}
	return nil
}
