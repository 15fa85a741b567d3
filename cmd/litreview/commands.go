package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/litreview"
	"github.com/poiesic/litreview/author"
	"github.com/poiesic/litreview/config"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/evaluate"
	"github.com/poiesic/litreview/ingestion"
	"github.com/poiesic/litreview/loop"
	"github.com/poiesic/litreview/reembed"
	"github.com/poiesic/litreview/search"
)

func retrieverOptions(cfg *config.Config) []search.Option {
	return []search.Option{
		search.WithOversample(cfg.Retrieval.Oversample),
		search.WithMaxLimit(cfg.Retrieval.MaxLimit),
	}
}

func ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("chunk-size") {
		cfg.Ingestion.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("chunk-overlap") {
		cfg.Ingestion.ChunkOverlap = c.Int("chunk-overlap")
	}
	if c.IsSet("pool-size") {
		cfg.Ingestion.PoolSize = c.Int("pool-size")
	}
	watchDir := cfg.Ingestion.WatchDir
	if c.IsSet("watch") {
		watchDir = c.String("watch")
	}

	files := c.StringSlice("file")
	if len(files) == 0 && watchDir == "" {
		return errors.New("nothing to ingest: pass --file or --watch")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []ingestion.Option{
		ingestion.WithChunking(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap),
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
	}
	if cfg.Ingestion.PoolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, file := range files {
		stats, err := pipeline.IngestFile(ctx, file)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", file, err)
		}
		fmt.Fprintf(c.App.Writer, "%s: %d documents, %d chunks (%d embedded, %d unchanged, %d removed)\n",
			file, stats.Documents, stats.Chunks, stats.Embedded, stats.Reused, stats.Removed)
	}

	if watchDir == "" {
		return nil
	}

	debounce, err := cfg.Debounce()
	if err != nil {
		return err
	}
	watcher, err := ingestion.NewWatcher(pipeline, watchDir,
		ingestion.WithDebounce(debounce),
		ingestion.WithWatcherLogger(db.Logger()))
	if err != nil {
		return err
	}
	defer watcher.Close()

	fmt.Fprintf(c.App.Writer, "Watching %s for publication files (Ctrl-C to stop)\n", watchDir)
	return watcher.Run(ctx)
}

func rebuildCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Rebuild(c.Context); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Sparse index: %d chunks\n", db.SparseIndex().Size())
	return nil
}

func searchCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	q := cfg.Query(c.String("query"))
	if c.IsSet("limit") {
		q.Limit = c.Int("limit")
	}
	if c.IsSet("strategy") {
		strategy, err := core.ParseStrategy(c.String("strategy"))
		if err != nil {
			return err
		}
		q.Strategy = strategy
	}
	if c.IsSet("weight") {
		q.HybridWeight = c.Float64("weight")
	}
	q.MinYear = c.Int("min-year")
	q.Source = c.String("source")

	if err := core.ValidateQuery(q); err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.Retrieve(c.Context, q)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Found %d results (%s)\n", len(results), q.Strategy)
	for i, r := range results {
		meta := r.Chunk.Metadata
		fmt.Fprintf(w, "%d. [%.3f] %s (%s, %s) %s\n", i+1, r.Relevance, meta.Title, meta.Authors, yearString(meta.Year), r.ChunkID)
		fmt.Fprintf(w, "   %s\n", snippet(r.Chunk.Text, 160))
	}
	return nil
}

func runCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("target") {
		cfg.Loop.TargetScore = c.Float64("target")
	}
	if c.IsSet("max-iterations") {
		cfg.Loop.MaxIterations = c.Int("max-iterations")
	}
	if c.IsSet("out-dir") {
		cfg.Loop.OutputDir = c.String("out-dir")
	}
	loopCfg := cfg.LoopConfig()
	if err := loopCfg.Validate(); err != nil {
		return err
	}
	timeout, err := cfg.EvaluationTimeout()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runnerOpts := []loop.Option{loop.WithConfig(loopCfg)}
	if out := c.String("out"); out != "" || cfg.Loop.OutputDir != "" {
		runnerOpts = append(runnerOpts, loop.WithSink(&loop.FileSink{Dir: cfg.Loop.OutputDir, Final: out}))
	}

	runner, err := db.NewRunner(litreview.RunnerOptions{
		Writer: []author.Option{
			author.WithEvidenceLimit(cfg.Retrieval.EvidenceLimit),
			author.WithHybridWeight(cfg.Retrieval.HybridWeight),
		},
		Evaluator: []evaluate.Option{evaluate.WithTimeout(timeout)},
		Runner:    runnerOpts,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := runner.Run(ctx, c.String("topic"))
	if err != nil {
		return err
	}

	status := "target reached"
	if !outcome.Succeeded() {
		status = "iteration budget exhausted"
	}
	fmt.Fprintf(c.App.ErrWriter, "Run %s: %s after iteration %d with score %.1f/10 (target %.1f)\n",
		outcome.RunID, status, outcome.Iteration, outcome.Score, loopCfg.TargetScore)

	if c.String("out") == "" {
		fmt.Fprintln(c.App.Writer, outcome.Artifact)
	}
	return nil
}

func auditCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	w := c.App.Writer
	runID := c.String("run")
	if runID == "" {
		runs, err := db.AuditRepository().ListRuns(c.Context)
		if err != nil {
			return err
		}
		for _, id := range runs {
			fmt.Fprintln(w, id)
		}
		return nil
	}

	records, err := db.AuditRepository().ListAuditRecords(c.Context, runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no audit records for run %s", runID)
	}

	fmt.Fprintf(w, "Run %s: %s\n", runID, records[0].Topic)
	for _, r := range records {
		line := fmt.Sprintf("  #%d %-16s score=%.1f passed=%t length=%d", r.Iteration, r.Decision, r.Score, r.Passed, r.ArtifactLength)
		if r.Fallback {
			line += " fallback"
		}
		if r.Error != "" {
			line += " error=" + r.Error
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\nEmbedding model: %s\n\n", cfg.Storage.Path, cfg.AI.EmbeddingModel)
	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func yearString(year int) string {
	if year == 0 {
		return "n.d."
	}
	return fmt.Sprint(year)
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
