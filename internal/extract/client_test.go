package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/llm"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
)

const microwaveJSON = `{
  "invention_name": "Microwave Oven",
  "invention_year": 1947,
  "summary": "Cooking with radar magnetrons.",
  "discoveries": [
    {"id": "d1", "year": 1940, "title": "Cavity magnetron", "description": "Randall and Boot build a compact magnetron.",
     "discoverers": ["John Randall", "Harry Boot"], "discovery_type": "prerequisite",
     "actual_outcome": "High-power microwaves", "significance": "Made radar practical", "location": "Birmingham"},
    {"id": "d2", "year": 1945, "title": "Melted chocolate bar", "description": "Spencer notices a candy bar melting near a magnetron.",
     "discoverers": ["Percy Spencer"], "discovery_type": "accidental", "original_goal": "Build radar sets",
     "actual_outcome": "Microwaves heat food", "significance": "Inspired the oven"}
  ],
  "connections": [
    {"from_discovery_id": "d1", "to_discovery_id": "d2", "relationship_type": "enabled", "description": "Spencer worked on magnetrons"}
  ],
  "patterns_identified": ["accident_to_innovation", "cross_pollination"],
  "pattern_explanations": {"accident_to_innovation": "The melted chocolate bar."},
  "serendipity_moments": ["a lucky accident in the lab"],
  "critical_prerequisites": ["Cavity magnetron"],
  "objective_blindness_examples": [],
  "narrative": "Radar engineers stumbled into cooking.",
  "key_lesson": "Pay attention to side effects."
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticGenerator(out string, err error) (llm.Generator, *[]llm.Request) {
	var reqs []llm.Request
	return llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		reqs = append(reqs, req)
		return out, err
	}), &reqs
}

func TestAnalyzeInvention_StrictJSON(t *testing.T) {
	gen, reqs := staticGenerator(microwaveJSON, nil)
	c := NewClient(gen, 0, testLogger())

	a, err := c.AnalyzeInvention(context.Background(), "Microwave Oven", []string{"radar"})
	require.NoError(t, err)
	require.Len(t, *reqs, 1)

	assert.Equal(t, "Microwave Oven", a.InventionName)
	require.NotNil(t, a.InventionYear)
	assert.Equal(t, 1947, *a.InventionYear)
	require.Len(t, a.Discoveries, 2)
	assert.Equal(t, models.DiscoveryAccidental, a.Discoveries[1].DiscoveryType)
	require.NotNil(t, a.Discoveries[1].OriginalGoal)
	assert.Equal(t, "Build radar sets", *a.Discoveries[1].OriginalGoal)
	assert.Equal(t, []models.PatternType{models.PatternAccidentToInnovation, models.PatternCrossPollination}, a.PatternsIdentified)
	assert.NotNil(t, a.ObjectiveBlindnessExamples)

	req := (*reqs)[0]
	assert.Contains(t, req.Prompt, "<invention>Microwave Oven</invention>")
	assert.Contains(t, req.Prompt, "<focus>radar</focus>")
	assert.Contains(t, req.System, "accident_to_innovation")
	assert.Contains(t, req.System, "\"failed_experiment\"", "schema should enumerate discovery types")
}

func TestAnalyzeInvention_FallbackEqualsDirectParse(t *testing.T) {
	direct, err := ParseAnalysis(microwaveJSON)
	require.NoError(t, err)

	wrapped := "Sure! Here is the analysis you asked for:\n```json\n" + microwaveJSON + "\n```\nHope this helps."

	gen, _ := staticGenerator(wrapped, nil)
	c := NewClient(gen, 0, testLogger())
	got, err := c.AnalyzeInvention(context.Background(), "Microwave Oven", nil)
	require.NoError(t, err)
	assert.Equal(t, direct, got)
}

func TestAnalyzeInvention_ForcesRequestedName(t *testing.T) {
	gen, _ := staticGenerator(microwaveJSON, nil)
	c := NewClient(gen, 0, testLogger())

	a, err := c.AnalyzeInvention(context.Background(), "  microwave oven ", nil)
	require.NoError(t, err)
	assert.Equal(t, "microwave oven", a.InventionName)
}

func TestAnalyzeInvention_ModelErrorIsExtractionFailure(t *testing.T) {
	boom := errors.New("overloaded")
	gen, reqs := staticGenerator("", boom)
	c := NewClient(gen, 0, testLogger())

	_, err := c.AnalyzeInvention(context.Background(), "X-ray", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, *reqs, 1, "the model call is never retried")
}

func TestAnalyzeInvention_UnparsableKeepsStrictError(t *testing.T) {
	gen, _ := staticGenerator("I cannot help with that.", nil)
	c := NewClient(gen, 0, testLogger())

	_, err := c.AnalyzeInvention(context.Background(), "X-ray", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)

	var xerr *Error
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "I cannot help with that.", xerr.Raw)
	assert.Contains(t, xerr.Err.Error(), "strict decode")
}

func TestAnalyzeInvention_InvalidEmbeddedObjectFails(t *testing.T) {
	// Well-formed JSON that violates the schema must not be returned partially.
	gen, _ := staticGenerator(`Result: {"invention_name": "X-ray", "summary": ""}`, nil)
	c := NewClient(gen, 0, testLogger())

	a, err := c.AnalyzeInvention(context.Background(), "X-ray", nil)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestParseAnalysis_StrictRejectsUnknownFieldsButFallbackAccepts(t *testing.T) {
	withExtra := `{"confidence": 0.9,` + microwaveJSON[1:]
	_, strictErr := parseAnalysisStrict(withExtra)
	require.Error(t, strictErr)

	a, err := ParseAnalysis(withExtra)
	require.NoError(t, err)
	assert.Equal(t, "Microwave Oven", a.InventionName)
}

func TestComparePattern_ParsesEmbeddedJSON(t *testing.T) {
	raw := `Here you go: {"pattern_description": "Accidents matter", "examples": [{"invention": "Penicillin", "example": "mould", "impact": "antibiotics"}], "insights": "Stay curious"}`
	gen, reqs := staticGenerator(raw, nil)
	c := NewClient(gen, 0, testLogger())

	cmp := c.ComparePattern(context.Background(), []string{"Penicillin", "Post-it Notes"}, models.PatternAccidentToInnovation)
	assert.False(t, cmp.Failed)
	assert.Equal(t, "Accidents matter", cmp.Description)
	require.Len(t, cmp.Examples, 1)
	assert.Equal(t, "antibiotics", cmp.Examples[0].Impact)
	assert.Equal(t, "Stay curious", cmp.Insights)

	assert.Contains(t, (*reqs)[0].Prompt, "- Penicillin\n- Post-it Notes")
	assert.Contains(t, (*reqs)[0].System, "accident_to_innovation")
}

func TestComparePattern_DegradesToSentinel(t *testing.T) {
	for name, gen := range map[string]llm.Generator{
		"model error": llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return "", errors.New("timeout")
		}),
		"garbage": llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return "no json here", nil
		}),
		"empty object": llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return "{}", nil
		}),
		"blank description": llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return `{"pattern_description": "  ", "examples": [], "insights": "x"}`, nil
		}),
	} {
		t.Run(name, func(t *testing.T) {
			c := NewClient(gen, 0, testLogger())
			cmp := c.ComparePattern(context.Background(), []string{"A", "B"}, models.PatternFailureToSuccess)
			assert.Equal(t, models.FailedComparison(), cmp)
		})
	}
}

func TestParseComparison_RequiresDescription(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"examples": []}`,
		`Sure: {"insights": "only insights"} done`,
	} {
		_, err := ParseComparison(raw)
		assert.Error(t, err, raw)
	}

	c, err := ParseComparison(`{"pattern_description": "Accidents matter"}`)
	require.NoError(t, err)
	assert.Equal(t, "Accidents matter", c.Description)
	assert.NotNil(t, c.Examples)
}
