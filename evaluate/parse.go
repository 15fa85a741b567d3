package evaluate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/litreview/core"
)

// Parsed is the structured content of one scoring response.
type Parsed struct {
	// Score is the overall score when the response carried one, otherwise
	// the mean of the parsed criteria. Always within [0,10].
	Score float64
	// Overall reports whether Score came from an explicit aggregate.
	Overall  bool
	Criteria map[string]float64
	Summary  string
}

const number = `(-?\d+(?:\.\d+)?)`

var (
	criterionPatterns = func() map[string]*regexp.Regexp {
		out := make(map[string]*regexp.Regexp, len(core.Criteria))
		for _, name := range core.Criteria {
			label := strings.ReplaceAll(regexp.QuoteMeta(strings.ToUpper(name)), "_", "[_ ]")
			out[name] = regexp.MustCompile(`(?im)^[\s*#>-]*` + label + `[\w ]*?[\s*]*:[\s*]*` + number)
		}
		return out
	}()
	overallPattern = regexp.MustCompile(`(?im)^[\s*#>-]*OVERALL[_ ]SCORE[\s*]*:[\s*]*` + number)
	summaryPattern = regexp.MustCompile(`(?s)SUMMARY[\s*]*:[\s*]*(.*)$`)
)

// criterionAliases maps the long field names some models emit to rubric criteria.
var criterionAliases = map[string]string{
	"organization_and_structure":    core.CriterionOrganization,
	"clarity_and_readability":       core.CriterionClarity,
	"citation_quality_and_accuracy": core.CriterionCitationQuality,
}

// Parse extracts scores from a response in either the line format
// (`NAME: value`, OVERALL_SCORE, SUMMARY through the end of the text)
// or as a JSON object. Values are clamped to [0,10].
// Returns core.ErrEvaluationParse when no score can be found.
func Parse(response string) (Parsed, error) {
	if strings.TrimSpace(response) == "" {
		return Parsed{}, fmt.Errorf("%w: empty response", core.ErrEvaluationParse)
	}

	if p, ok := parseText(response); ok {
		return p, nil
	}
	if p, ok := parseJSON(response); ok {
		return p, nil
	}
	return Parsed{}, fmt.Errorf("%w: no overall score or criteria found", core.ErrEvaluationParse)
}

func parseText(response string) (Parsed, bool) {
	p := Parsed{Criteria: make(map[string]float64)}

	for _, name := range core.Criteria {
		if m := criterionPatterns[name].FindStringSubmatch(response); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				p.Criteria[name] = core.ClampScore(v)
			}
		}
	}

	if m := overallPattern.FindStringSubmatch(response); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.Score = core.ClampScore(v)
			p.Overall = true
		}
	}

	if m := summaryPattern.FindStringSubmatch(response); m != nil {
		p.Summary = strings.TrimSpace(m[1])
	}

	return p, p.finish()
}

type jsonResponse struct {
	Score        *float64           `json:"score"`
	OverallScore *float64           `json:"overall_score"`
	Criteria     map[string]float64 `json:"criteria"`
	Summary      string             `json:"summary"`
	Feedback     string             `json:"feedback"`
}

func parseJSON(response string) (Parsed, bool) {
	text := stripFences(response)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Parsed{}, false
	}
	text = text[start : end+1]

	var raw jsonResponse
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		if err := json.Unmarshal([]byte(repairJSON(text)), &raw); err != nil {
			return Parsed{}, false
		}
	}

	p := Parsed{Criteria: make(map[string]float64), Summary: strings.TrimSpace(raw.Summary)}
	if p.Summary == "" {
		p.Summary = strings.TrimSpace(raw.Feedback)
	}
	for key, v := range raw.Criteria {
		name := strings.ToLower(strings.TrimSpace(key))
		if alias, ok := criterionAliases[name]; ok {
			name = alias
		}
		if _, known := criterionPatterns[name]; known {
			p.Criteria[name] = core.ClampScore(v)
		}
	}

	switch {
	case raw.OverallScore != nil:
		p.Score, p.Overall = core.ClampScore(*raw.OverallScore), true
	case raw.Score != nil:
		p.Score, p.Overall = core.ClampScore(*raw.Score), true
	}
	return p, p.finish()
}

// finish derives the score from the criteria when no aggregate was given and
// reports whether the response carried any score at all.
func (p *Parsed) finish() bool {
	if p.Overall {
		return true
	}
	if len(p.Criteria) == 0 {
		return false
	}
	var sum float64
	for _, v := range p.Criteria {
		sum += v
	}
	p.Score = core.ClampScore(sum / float64(len(p.Criteria)))
	return true
}

// Fallback is the score used when a response cannot be used.
// It starts at 6.5 and rises by at least 0.5 per iteration, capped at 10.
func Fallback(previousScore float64, iteration int) float64 {
	if iteration <= 0 {
		return fallbackFloor
	}
	return min(max(previousScore+fallbackStep, fallbackFloor), core.MaxScore)
}

const (
	fallbackFloor = 6.5
	fallbackStep  = 0.5
)
