package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
	"github.com/Gajesh2007/discovery-archaeology-agent/pkg/xmlutil"
)

// analysisSystemPrompt sets the analytical goal. The pattern guidelines are
// advice to the model; nothing downstream enforces how many tags it returns.
const analysisSystemPrompt = `You are a Discovery Archaeology Agent that reverse-engineers the true origins of inventions.
Your goal is to uncover the chain of serendipitous discoveries, failed experiments, and unintended consequences that made inventions possible.

Focus on:
1. Accidental discoveries (like the microwave from a melted chocolate bar)
2. Failed experiments that led to unexpected successes
3. Cross-domain accidents where pursuing one goal revealed something entirely different
4. Hidden prerequisites - technologies/discoveries that had to exist first
5. Moments where rigid goals caused people to miss the real breakthroughs

IMPORTANT: When identifying patterns, be SELECTIVE and SPECIFIC. Only identify patterns that are clearly and strongly evident in the invention's history. Not every invention will exhibit every pattern type. It's better to identify 2-3 strong patterns than to force all patterns to fit.

Pattern Guidelines:
- accident_to_innovation: Only if a clear accident directly led to the breakthrough
- failure_to_success: Only if a genuine failure was converted to success
- wrong_goal_right_result: Only if pursuing one goal led to a completely different valuable outcome
- unexpected_observation: Only if an observation that wasn't anticipated became crucial
- cross_pollination: Only if knowledge from unrelated fields was essential
- prerequisite_chain: Only if there's a clear chain of required prior technologies

Be critical and evidence-based. If a pattern isn't clearly present, don't include it.

The output must be a single JSON object matching this JSON Schema, with no text before or after it:
%s

Give every discovery a short id (d1, d2, ...) and reference those ids in connections.
Provide a comprehensive analysis that tells the meandering story of how the invention actually came to be, not the simplified version typically told.`

// analysisPromptTemplate embeds the user-controlled invention name and
// focus areas inside XML tags.
const analysisPromptTemplate = `Analyze the invention named in the <invention> tag.

<invention>%s</invention>
%s
Remember to:
- Include specific dates, people, and locations when known
- Highlight the unexpected and accidental nature of discoveries
- Show how failures and mistakes led to breakthroughs
- Identify patterns that recur across innovation history
- Emphasize how the final invention couldn't have been planned`

const comparisonSystemPrompt = `You are analyzing multiple inventions to identify recurring patterns in innovation.
Focus on finding examples of the %s pattern across the given inventions. Output only valid JSON.`

const comparisonPromptTemplate = `Analyze these inventions for the %s pattern:
<inventions>
%s
</inventions>

For each invention, provide:
1. A specific example of this pattern
2. How it manifested in that invention's history
3. The impact it had on the final innovation

Return a JSON object with:
- pattern_description: Overall description of this pattern
- examples: List of {"invention": "name", "example": "description", "impact": "result"}
- insights: What this pattern teaches about innovation`

var (
	schemaOnce sync.Once
	schemaText string
)

// outputSchema is the JSON Schema of models.InventionAnalysis, reflected once.
func outputSchema() string {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		s := r.Reflect(&models.InventionAnalysis{})
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			// Reflection of a fixed struct cannot fail at runtime; keep a usable prompt anyway.
			schemaText = `{"type":"object"}`
			return
		}
		schemaText = string(b)
	})
	return schemaText
}

func analysisSystem() string {
	return fmt.Sprintf(analysisSystemPrompt, outputSchema())
}

func analysisPrompt(name string, focusAreas []string) string {
	focus := ""
	if tags := xmlutil.List("focus", focusAreas); tags != "" {
		focus = "\nPay special attention to the aspects in the <focus> tags:\n" + tags + "\n"
	}
	return fmt.Sprintf(analysisPromptTemplate, xmlutil.Escape(name), focus)
}

func comparisonSystem(pt models.PatternType) string {
	return fmt.Sprintf(comparisonSystemPrompt, pt)
}

func comparisonPrompt(inventions []string, pt models.PatternType) string {
	lines := make([]string, 0, len(inventions))
	for _, inv := range inventions {
		lines = append(lines, "- "+xmlutil.Escape(inv))
	}
	return fmt.Sprintf(comparisonPromptTemplate, pt, strings.Join(lines, "\n"))
}
