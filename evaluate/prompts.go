package evaluate

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an academic reviewer assessing the Related Work chapter of a research paper.
You score strictly and consistently, and you always follow the requested output format.`

// criterionGuide describes what each rubric criterion measures.
var criterionGuide = []struct {
	label string
	guide string
}{
	{"COMPREHENSIVENESS", "How well does the chapter cover the breadth of relevant literature? Are important works included?"},
	{"RELEVANCE", "Are the cited works clearly related to the research problem? Does the chapter avoid tangential references?"},
	{"ORGANIZATION", "Is the literature grouped logically (by theme, method or chronology) so the reader understands the landscape?"},
	{"CRITICAL_ANALYSIS", "Does the author compare and contrast the work and highlight gaps or trends instead of summarizing papers?"},
	{"CLARITY", "Is the writing clear, concise and free of unnecessary jargon?"},
	{"CITATION_QUALITY", "Are sources reliable, up to date and cited correctly? Are foundational and recent works both present?"},
}

// buildPrompt renders the scoring request for one artifact.
func buildPrompt(artifact string, rc RubricContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Assess the quality of the chapter on the topic %q according to the criteria below.\n", rc.Topic)
	if rc.Iteration > 0 {
		fmt.Fprintf(&sb, "This is iteration %d of the revision process.\nPrevious score was: %.1f/10\n", rc.Iteration, rc.PreviousScore)
	}
	sb.WriteString("\nCriteria:\n")
	for _, c := range criterionGuide {
		fmt.Fprintf(&sb, "- %s: %s\n", c.label, c.guide)
	}

	sb.WriteString(`
For each criterion give a numerical rating from 0 to 10 followed by a short justification (2-3 sentences).
Then give the average score and a final summary (5-7 sentences) with concrete recommendations.

IMPORTANT: Format your response EXACTLY as follows:

`)
	for _, c := range criterionGuide {
		fmt.Fprintf(&sb, "%s: [score 0-10]\n[justification]\n\n", c.label)
	}
	fmt.Fprintf(&sb, "OVERALL_SCORE: [average score]\nPASSED: [true/false - true if score >= %.1f]\n\nSUMMARY:\n[Your detailed summary and recommendations]\n\n", rc.TargetScore)
	sb.WriteString("Chapter to evaluate:\n")
	sb.WriteString(artifact)
	return sb.String()
}
