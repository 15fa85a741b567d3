// Package config loads the TOML configuration file shared by the litreview
// command line tools and converts its sections into component configs.
//
// Example file:
//
//	[storage]
//	path = "/var/lib/litreview"
//
//	[ai]
//	host = "http://localhost:11434"
//	generator_model = "qwen2.5:7b"
//
//	[retrieval]
//	strategy = "hybrid"
//	hybrid_weight = 0.6
//
//	[loop]
//	target_score = 8.5
//	max_iterations = 4
//
//	[ingestion]
//	chunk_size = 1000
//	chunk_overlap = 200
package config
