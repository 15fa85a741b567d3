// Package evaluate turns a scoring model's reply into a core.QualityAssessment.
//
// The Evaluator sends the artifact and a six-criterion rubric to an
// ai.Generator and parses the reply with Parse, which accepts the
// line-oriented rubric format as well as JSON. Criteria are clamped to
// [0,10]; an explicit overall score wins over the mean of the criteria.
//
// Scoring never blocks the revision loop. When the call fails or the reply
// cannot be parsed, Assess returns the deterministic Fallback score: 6.5 on
// the first iteration, then the previous score plus 0.5 (at least 6.5),
// capped at 10.
package evaluate
