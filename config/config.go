// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/ingestion"
	"github.com/poiesic/litreview/loop"
	"github.com/poiesic/litreview/search"
)

// Config is the on-disk configuration of a litreview installation.
type Config struct {
	Storage   Storage   `toml:"storage"`
	AI        AI        `toml:"ai"`
	Retrieval Retrieval `toml:"retrieval"`
	Loop      Loop      `toml:"loop"`
	Ingestion Ingestion `toml:"ingestion"`
}

// Storage locates the chunk store.
type Storage struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// AI configures the embedding and generation hosts.
type AI struct {
	// Host sets both hosts when non-empty.
	Host              string  `toml:"host"`
	EmbeddingHost     string  `toml:"embedding_host"`
	GeneratorHost     string  `toml:"generator_host"`
	EmbeddingModel    string  `toml:"embedding_model"`
	GeneratorModel    string  `toml:"generator_model"`
	APIKey            string  `toml:"api_key"`
	Temperature       float64 `toml:"temperature"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
	MaxRetries        int     `toml:"max_retries"`
}

// Retrieval configures the fusion ranker and query defaults.
type Retrieval struct {
	Strategy      string  `toml:"strategy"`
	Limit         int     `toml:"limit"`
	HybridWeight  float64 `toml:"hybrid_weight"`
	Oversample    int     `toml:"oversample"`
	MaxLimit      int     `toml:"max_limit"`
	EvidenceLimit int     `toml:"evidence_limit"`
}

// Loop configures the convergence loop.
type Loop struct {
	TargetScore       float64 `toml:"target_score"`
	MaxIterations     int     `toml:"max_iterations"`
	MinArtifactLength int     `toml:"min_artifact_length"`
	// EvaluationTimeout bounds each scoring call, e.g. "2m". Empty means unbounded.
	EvaluationTimeout string `toml:"evaluation_timeout"`
	// OutputDir receives revision and final artifact files when set.
	OutputDir string `toml:"output_dir"`
}

// Ingestion configures document splitting and embedding.
type Ingestion struct {
	ChunkSize    int    `toml:"chunk_size"`
	ChunkOverlap int    `toml:"chunk_overlap"`
	PoolSize     int    `toml:"pool_size"`
	BatchSize    int    `toml:"batch_size"`
	WatchDir     string `toml:"watch_dir"`
	Debounce     string `toml:"debounce"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	loopCfg := loop.DefaultConfig()
	return &Config{
		Storage: Storage{Path: "litreview.db"},
		AI: AI{
			EmbeddingHost:     aiCfg.EmbeddingHost,
			GeneratorHost:     aiCfg.GeneratorHost,
			EmbeddingModel:    aiCfg.EmbeddingModel,
			GeneratorModel:    aiCfg.GeneratorModel,
			APIKey:            aiCfg.APIKey,
			Temperature:       aiCfg.Temperature,
			RequestsPerMinute: aiCfg.RequestsPerMinute,
			MaxRetries:        aiCfg.MaxRetries,
		},
		Retrieval: Retrieval{
			Strategy:      string(core.StrategyHybrid),
			Limit:         5,
			HybridWeight:  0.5,
			Oversample:    search.DefaultOversample,
			MaxLimit:      search.DefaultMaxLimit,
			EvidenceLimit: 10,
		},
		Loop: Loop{
			TargetScore:       loopCfg.TargetScore,
			MaxIterations:     loopCfg.MaxIterations,
			MinArtifactLength: loopCfg.MinArtifactLength,
		},
		Ingestion: Ingestion{
			ChunkSize:    ingestion.DefaultChunkSize,
			ChunkOverlap: ingestion.DefaultChunkOverlap,
			BatchSize:    ingestion.DefaultBatchSize,
			Debounce:     ingestion.DefaultDebounce.String(),
		},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default value; unknown keys are rejected. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%s: %w: %s", path, ErrInvalidConfig, strict.String())
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required unless storage.in_memory is set", ErrInvalidConfig)
	}

	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: ai: %w", ErrInvalidConfig, err)
	}

	if err := core.ValidateQuery(c.Query("validate")); err != nil {
		return err
	}
	if c.Retrieval.Oversample < 1 || c.Retrieval.MaxLimit < 1 || c.Retrieval.EvidenceLimit < 1 {
		return fmt.Errorf("%w: retrieval oversample, max_limit and evidence_limit must be positive", ErrInvalidConfig)
	}

	if err := c.LoopConfig().Validate(); err != nil {
		return err
	}
	if _, err := c.EvaluationTimeout(); err != nil {
		return err
	}

	if c.Ingestion.ChunkSize < 1 || c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("%w: ingestion.chunk_overlap must be below ingestion.chunk_size", ErrInvalidConfig)
	}
	if _, err := c.Debounce(); err != nil {
		return err
	}
	return nil
}

// AIConfig converts the [ai] section.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGeneratorHost(c.AI.GeneratorHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGeneratorModel(c.AI.GeneratorModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithRequestsPerMinute(c.AI.RequestsPerMinute),
		ai.WithMaxRetries(c.AI.MaxRetries),
	}
	if c.AI.Host != "" {
		opts = append(opts, ai.WithHost(c.AI.Host))
	}
	cfg := ai.NewConfig(opts...)
	cfg.Normalize()
	return cfg
}

// LoopConfig converts the [loop] section.
func (c *Config) LoopConfig() *loop.Config {
	return loop.NewConfig(
		loop.WithTargetScore(c.Loop.TargetScore),
		loop.WithMaxIterations(c.Loop.MaxIterations),
		loop.WithMinArtifactLength(c.Loop.MinArtifactLength),
	)
}

// Query builds a retrieval query for text from the [retrieval] defaults.
// An unknown strategy is passed through so ValidateQuery can reject it.
func (c *Config) Query(text string) core.RetrievalQuery {
	strategy, err := core.ParseStrategy(c.Retrieval.Strategy)
	if err != nil {
		strategy = core.Strategy(c.Retrieval.Strategy)
	}
	return core.RetrievalQuery{
		Text:         text,
		Limit:        c.Retrieval.Limit,
		Strategy:     strategy,
		HybridWeight: c.Retrieval.HybridWeight,
	}
}

// EvaluationTimeout parses loop.evaluation_timeout.
func (c *Config) EvaluationTimeout() (time.Duration, error) {
	return parseDuration("loop.evaluation_timeout", c.Loop.EvaluationTimeout)
}

// Debounce parses ingestion.debounce.
func (c *Config) Debounce() (time.Duration, error) {
	return parseDuration("ingestion.debounce", c.Ingestion.Debounce)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s cannot be negative", ErrInvalidConfig, key)
	}
	return d, nil
}
