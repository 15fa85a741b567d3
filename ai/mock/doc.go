// Package mock provides test double implementations of AI service interfaces.
//
// MockEmbedder returns deterministic unit vectors derived from a hash of the
// input text. MockGenerator replays a scripted list of responses and records
// every call, which lets loop and evaluator tests drive exact score sequences.
//
//	gen := mock.NewMockGenerator("OVERALL_SCORE: 6\nSUMMARY: thin", "OVERALL_SCORE: 9")
//	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), gen)
package mock
