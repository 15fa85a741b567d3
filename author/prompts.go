package author

import (
	"fmt"
	"strings"

	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/loop"
)

const systemPrompt = `You are an accomplished academic writer with extensive experience in scholarly publishing.
You synthesize complex research into a clear, coherent narrative that follows academic writing standards.
Cite only the numbered sources you are given, using their numbers in square brackets. Never invent publications.
Return only the chapter text.`

const excerptLength = 600

// formatSources renders retrieved chunks as a numbered source list.
func formatSources(results []core.ScoredResult) string {
	if len(results) == 0 {
		return "No sources were retrieved for this topic.\n"
	}

	var sb strings.Builder
	for i, r := range results {
		m := r.Chunk.Metadata
		fmt.Fprintf(&sb, "[%d] %s", i+1, orUnknown(m.Title))
		if m.Authors != "" || m.Year != 0 {
			year := "n.d."
			if m.Year != 0 {
				year = fmt.Sprint(m.Year)
			}
			fmt.Fprintf(&sb, " (%s, %s)", orUnknown(m.Authors), year)
		}
		if m.Journal != "" {
			fmt.Fprintf(&sb, ", %s", m.Journal)
		}
		if m.DOI != "" {
			fmt.Fprintf(&sb, ", doi:%s", m.DOI)
		} else if m.ArxivID != "" {
			fmt.Fprintf(&sb, ", arXiv:%s", m.ArxivID)
		}
		sb.WriteString("\n")
		sb.WriteString(excerpt(r.Chunk.Text))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= excerptLength {
		return text
	}
	return string(r[:excerptLength]) + "..."
}

func draftPrompt(req loop.ProduceRequest, sources string) string {
	return fmt.Sprintf(`Write the Related Work chapter of a research paper on %q.

Sources:
%s
Organize the literature thematically, compare and contrast approaches, and identify gaps and emerging trends.
The chapter should be between 800 and 1000 words with an introduction, thematic sections and a short conclusion.`,
		req.Topic, sources)
}

func revisionPrompt(req loop.ProduceRequest, sources string) string {
	return fmt.Sprintf(`Revise the Related Work chapter on %q based on the evaluation feedback.
Address every issue raised: argumentation, clarity, missing information and citations, transitions and academic tone.
Keep the chapter within roughly 800 to 1000 words.

Current Score: %.1f/10
Target Score: %.1f/10

Feedback to address:
%s

Sources:
%s
Chapter to revise:
%s`,
		req.Topic, req.PreviousScore, req.TargetScore, req.Feedback, sources, req.PreviousArtifact)
}
