// Package litreview retrieves evidence from a corpus of research publications
// and iteratively drafts a literature review until it meets a quality target.
//
// Retrieval fuses a dense (embedding) index and a sparse (BM25) index over a
// BadgerDB chunk store. The convergence loop alternates between producing an
// artifact, scoring it against a rubric and deciding whether to revise or stop,
// recording every iteration in an append-only audit log.
//
// Basic usage:
//
//	db, err := litreview.NewDatabase("/var/lib/litreview", litreview.WithAIConfig(cfg))
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	pipeline, err := db.NewIngestionPipeline()
//	if err != nil {
//		return err
//	}
//	defer pipeline.Release()
//	if _, err := pipeline.IngestFile(ctx, "publications.json"); err != nil {
//		return err
//	}
//
//	runner, err := db.NewRunner(litreview.RunnerOptions{})
//	if err != nil {
//		return err
//	}
//	outcome, err := runner.Run(ctx, "edge computing for machine learning inference")
package litreview
