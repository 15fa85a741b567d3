package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/litreview/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "litreview.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8.0, cfg.Loop.TargetScore)
	assert.Equal(t, 5, cfg.Loop.MaxIterations)
	assert.Equal(t, 1000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 200, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, "hybrid", cfg.Retrieval.Strategy)
	assert.Equal(t, 20, cfg.Retrieval.MaxLimit)

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[storage]
path = "/tmp/lit"

[ai]
host = "http://gpu-box:8000"
generator_model = "llama3"
temperature = 0.2

[retrieval]
strategy = "sparse"
limit = 7

[loop]
target_score = 9.0
max_iterations = 2
evaluation_timeout = "90s"

[ingestion]
pool_size = 3
watch_dir = "/tmp/incoming"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/lit", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.Retrieval.Limit)
	assert.Equal(t, 3, cfg.Ingestion.PoolSize)
	assert.Equal(t, 200, cfg.Ingestion.ChunkOverlap, "unset keys keep defaults")

	aiCfg := cfg.AIConfig()
	assert.Equal(t, "http://gpu-box:8000/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "http://gpu-box:8000/v1", aiCfg.GeneratorHost)
	assert.Equal(t, "llama3", aiCfg.GeneratorModel)
	assert.Equal(t, 0.2, aiCfg.Temperature)

	loopCfg := cfg.LoopConfig()
	assert.Equal(t, 9.0, loopCfg.TargetScore)
	assert.Equal(t, 2, loopCfg.MaxIterations)

	timeout, err := cfg.EvaluationTimeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, timeout)

	q := cfg.Query("edge computing")
	assert.Equal(t, core.StrategySparse, q.Strategy)
	assert.Equal(t, 7, q.Limit)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "target above scale", body: "[loop]\ntarget_score = 11.0\n", wantErr: core.ErrInvalidTargetScore},
		{name: "negative iterations", body: "[loop]\nmax_iterations = -1\n", wantErr: core.ErrInvalidMaxIterations},
		{name: "unknown strategy", body: "[retrieval]\nstrategy = \"fuzzy\"\n", wantErr: core.ErrInvalidStrategy},
		{name: "weight out of range", body: "[retrieval]\nhybrid_weight = 1.5\n", wantErr: core.ErrInvalidHybridWeight},
		{name: "overlap too large", body: "[ingestion]\nchunk_size = 100\nchunk_overlap = 100\n", wantErr: ErrInvalidConfig},
		{name: "bad duration", body: "[loop]\nevaluation_timeout = \"soon\"\n", wantErr: ErrInvalidConfig},
		{name: "unknown key", body: "[loop]\ntarget = 8.0\n", wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[loop\n"))
		assert.Error(t, err)
	})
}
