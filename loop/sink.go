package loop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactSink receives artifacts as a run progresses.
// Sink failures are logged and never abort a run.
type ArtifactSink interface {
	SaveRevision(ctx context.Context, runID string, iteration int, artifact string) error
	SaveFinal(ctx context.Context, outcome *Outcome) error
}

// FileSink writes each revision to Dir/<run id>/revision_<n>.md and the
// final artifact to Final, or Dir/<run id>/final.md when Final is empty.
// Revisions are not written when Dir is empty.
type FileSink struct {
	Dir   string
	Final string
}

var _ ArtifactSink = (*FileSink)(nil)

func (s *FileSink) SaveRevision(_ context.Context, runID string, iteration int, artifact string) error {
	if s.Dir == "" {
		return nil
	}
	dir := filepath.Join(s.Dir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("revision_%d.md", iteration)), []byte(artifact), 0o644)
}

func (s *FileSink) SaveFinal(_ context.Context, outcome *Outcome) error {
	path := s.Final
	if path == "" {
		path = filepath.Join(s.Dir, outcome.RunID, "final.md")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(outcome.Artifact), 0o644)
}
