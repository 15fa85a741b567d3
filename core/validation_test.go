package core

import (
	"errors"
	"math"
	"testing"
)

func validChunk() *Chunk {
	return &Chunk{
		ID:   ChunkID("doc", 1),
		Text: "Edge computing moves inference closer to the data source.",
		Metadata: ChunkMetadata{
			BaseID:      "doc",
			ChunkIndex:  1,
			TotalChunks: 3,
		},
	}
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Chunk) *Chunk
		wantErr error
	}{
		{
			name:    "valid chunk",
			mutate:  func(c *Chunk) *Chunk { return c },
			wantErr: nil,
		},
		{
			name: "valid chunk without vector",
			mutate: func(c *Chunk) *Chunk {
				c.Vector = nil
				return c
			},
			wantErr: nil,
		},
		{
			name:    "nil chunk",
			mutate:  func(c *Chunk) *Chunk { return nil },
			wantErr: ErrInvalidChunk,
		},
		{
			name: "blank text",
			mutate: func(c *Chunk) *Chunk {
				c.Text = "  \n"
				return c
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "missing base id",
			mutate: func(c *Chunk) *Chunk {
				c.Metadata.BaseID = ""
				return c
			},
			wantErr: ErrEmptyBaseID,
		},
		{
			name: "index equals total",
			mutate: func(c *Chunk) *Chunk {
				c.Metadata.ChunkIndex = 3
				c.ID = ChunkID("doc", 3)
				return c
			},
			wantErr: ErrChunkIndexRange,
		},
		{
			name: "negative index",
			mutate: func(c *Chunk) *Chunk {
				c.Metadata.ChunkIndex = -1
				return c
			},
			wantErr: ErrChunkIndexRange,
		},
		{
			name: "id not derived from base and index",
			mutate: func(c *Chunk) *Chunk {
				c.ID = "doc_chunk_2"
				return c
			},
			wantErr: ErrChunkIDMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.mutate(validChunk()))

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuery(t *testing.T) {
	valid := RetrievalQuery{Text: "edge computing", Limit: 5, Strategy: StrategyHybrid, HybridWeight: 0.5}

	tests := []struct {
		name    string
		mutate  func(q RetrievalQuery) RetrievalQuery
		wantErr error
	}{
		{name: "valid", mutate: func(q RetrievalQuery) RetrievalQuery { return q }},
		{name: "weight zero", mutate: func(q RetrievalQuery) RetrievalQuery { q.HybridWeight = 0; return q }},
		{name: "weight one", mutate: func(q RetrievalQuery) RetrievalQuery { q.HybridWeight = 1; return q }},
		{name: "limit above cap is not an error", mutate: func(q RetrievalQuery) RetrievalQuery { q.Limit = 1000; return q }},
		{name: "empty text", mutate: func(q RetrievalQuery) RetrievalQuery { q.Text = " "; return q }, wantErr: ErrEmptyQuery},
		{name: "zero limit", mutate: func(q RetrievalQuery) RetrievalQuery { q.Limit = 0; return q }, wantErr: ErrInvalidLimit},
		{name: "negative limit", mutate: func(q RetrievalQuery) RetrievalQuery { q.Limit = -2; return q }, wantErr: ErrInvalidLimit},
		{name: "unknown strategy", mutate: func(q RetrievalQuery) RetrievalQuery { q.Strategy = "bm42"; return q }, wantErr: ErrInvalidStrategy},
		{name: "weight above one", mutate: func(q RetrievalQuery) RetrievalQuery { q.HybridWeight = 1.01; return q }, wantErr: ErrInvalidHybridWeight},
		{name: "negative weight", mutate: func(q RetrievalQuery) RetrievalQuery { q.HybridWeight = -0.1; return q }, wantErr: ErrInvalidHybridWeight},
		{name: "NaN weight", mutate: func(q RetrievalQuery) RetrievalQuery { q.HybridWeight = math.NaN(); return q }, wantErr: ErrInvalidHybridWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.mutate(valid))

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateQuery() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("ValidateQuery() error = %v, want configuration error", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuery() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTargetScore(t *testing.T) {
	for _, target := range []float64{0, 8, 10} {
		if err := ValidateTargetScore(target); err != nil {
			t.Errorf("ValidateTargetScore(%v) error = %v, want nil", target, err)
		}
	}
	for _, target := range []float64{-1, 10.5, 100, math.NaN()} {
		if err := ValidateTargetScore(target); !errors.Is(err, ErrInvalidTargetScore) {
			t.Errorf("ValidateTargetScore(%v) error = %v, want %v", target, err, ErrInvalidTargetScore)
		}
	}
}

func TestValidateMaxIterations(t *testing.T) {
	if err := ValidateMaxIterations(0); err != nil {
		t.Errorf("ValidateMaxIterations(0) error = %v, want nil", err)
	}
	if err := ValidateMaxIterations(-1); !errors.Is(err, ErrInvalidMaxIterations) {
		t.Errorf("ValidateMaxIterations(-1) error = %v, want %v", err, ErrInvalidMaxIterations)
	}
}
