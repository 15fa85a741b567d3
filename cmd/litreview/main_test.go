package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/ai/mock"
)

const testPublications = `[
  {"title": "Edge Inference", "authors": ["A. Author"], "year": 2022, "arxiv_id": "2201.00001",
   "abstract": "edge computing reduces latency for inference"},
  {"title": "Cloud Platforms", "authors": "B. Author", "year": 2019, "doi": "10.1000/cloud",
   "abstract": "cloud computing centralizes resources"},
  {"title": "Molecular Graphs", "authors": [], "year": "2020",
   "abstract": "graph neural networks for molecules"}
]`

func useMockProvider(t *testing.T, generator *mock.MockGenerator) {
	t.Helper()
	if generator == nil {
		generator = mock.NewMockGenerator()
	}
	prev := newProvider
	newProvider = func(*ai.Config) (ai.AIProvider, error) {
		return mock.NewMockProviderWithServices(mock.NewMockEmbedder(), generator), nil
	}
	t.Cleanup(func() { newProvider = prev })
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"litreview", "--log-level", "error"}, args...))
	return out.String(), errOut.String(), err
}

func writePublications(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pubs.json")
	require.NoError(t, os.WriteFile(path, []byte(testPublications), 0o644))
	return path
}

func TestSetupLogger(t *testing.T) {
	useMockProvider(t, nil)

	_, _, err := runApp(t, "--log-level", "verbose", "audit", "--db", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRequiredFlags(t *testing.T) {
	useMockProvider(t, nil)
	db := t.TempDir()

	t.Run("search requires query", func(t *testing.T) {
		_, _, err := runApp(t, "--db", db, "search")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query")
	})

	t.Run("run requires topic", func(t *testing.T) {
		_, _, err := runApp(t, "--db", db, "run")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "topic")
	})

	t.Run("ingest needs input", func(t *testing.T) {
		_, _, err := runApp(t, "--db", db, "ingest")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nothing to ingest")
	})

	t.Run("target outside scale", func(t *testing.T) {
		_, _, err := runApp(t, "--db", db, "run", "--topic", "x", "--target", "12")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "target score")
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, _, err := runApp(t, "--db", db, "search", "-q", "x", "--strategy", "fuzzy")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strategy")
	})
}

func TestIngestSearchRunAudit(t *testing.T) {
	draft := strings.Repeat("Edge computing moves inference closer to the data [1]. ", 4)
	useMockProvider(t, mock.NewMockGenerator(draft, "OVERALL_SCORE: 9\nSUMMARY: solid"))
	db := t.TempDir()

	out, _, err := runApp(t, "--db", db, "ingest", "--file", writePublications(t))
	require.NoError(t, err)
	assert.Contains(t, out, "3 documents, 3 chunks")

	out, _, err = runApp(t, "--db", db, "rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "Sparse index: 3 chunks")

	out, _, err = runApp(t, "--db", db, "search", "-q", "edge computing", "--strategy", "sparse", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 results (sparse)")
	assert.Contains(t, out, "Edge Inference")
	assert.Contains(t, out, "2201_00001_chunk_0")

	out, _, err = runApp(t, "--db", db, "search", "-q", "computing", "--source", "openalex")
	require.NoError(t, err)
	assert.Contains(t, out, "Cloud Platforms")
	assert.NotContains(t, out, "Edge Inference")

	final := filepath.Join(t.TempDir(), "review.md")
	_, errOut, err := runApp(t, "--db", db, "run", "--topic", "edge computing", "--out", final)
	require.NoError(t, err)
	assert.Contains(t, errOut, "target reached after iteration 0 with score 9.0/10")

	written, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(draft), string(written))

	out, _, err = runApp(t, "--db", db, "audit")
	require.NoError(t, err)
	runs := strings.Fields(out)
	require.Len(t, runs, 1)

	out, _, err = runApp(t, "--db", db, "audit", "--run", runs[0])
	require.NoError(t, err)
	assert.Contains(t, out, "edge computing")
	assert.Contains(t, out, "#0 finalize_success")
	assert.Contains(t, out, "score=9.0")
}

func TestReembedCommand(t *testing.T) {
	useMockProvider(t, nil)
	db := t.TempDir()

	_, _, err := runApp(t, "--db", db, "ingest", "-f", writePublications(t))
	require.NoError(t, err)

	_, errOut, err := runApp(t, "--db", db, "reembed", "--batch-size", "1", "--retry-delay", "1ms")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Re-embedding 3 chunks")

	_, _, err = runApp(t, "--db", db, "reembed", "--batch-size", "0")
	assert.ErrorContains(t, err, "batch-size")
}
