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

package litreview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/litreview/ai"
	"github.com/poiesic/litreview/ai/openai"
	"github.com/poiesic/litreview/author"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/evaluate"
	"github.com/poiesic/litreview/index"
	"github.com/poiesic/litreview/ingestion"
	"github.com/poiesic/litreview/loop"
	"github.com/poiesic/litreview/reembed"
	"github.com/poiesic/litreview/search"
	"github.com/poiesic/litreview/storage"
	"github.com/poiesic/litreview/storage/badger"
)

// Database wires the chunk store, both indexes, the fusion ranker and the
// AI provider together.
type Database struct {
	backend   *badger.Backend
	chunkRepo storage.ChunkRepository
	auditRepo storage.AuditRepository
	provider  ai.AIProvider
	dense     *index.Dense
	sparse    *index.Sparse
	retriever *search.Retriever
	logger    *slog.Logger

	sparseMu sync.Mutex
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	inMemory      bool
	logger        *slog.Logger
	retrieverOpts []search.Option
}

// WithAIConfig sets the configuration of the OpenAI-compatible provider.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The database closes it on Close.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the store in memory; the file path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetrieverOptions passes options through to the fusion ranker.
func WithRetrieverOptions(opts ...search.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.retrieverOpts = append(o.retrieverOpts, opts...)
	}
}

// NewDatabase opens (or creates) the store at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	auditRepo := badger.NewAuditRepository(backend)

	closeStore := func() {
		auditRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			closeStore()
			return nil, err
		}
	}

	dense, err := index.NewDense(chunkRepo, provider.Embedder(), index.WithLogger(logger))
	if err != nil {
		provider.Close()
		closeStore()
		return nil, err
	}
	sparse, err := index.NewSparse(chunkRepo, index.WithLogger(logger))
	if err != nil {
		provider.Close()
		closeStore()
		return nil, err
	}

	retrieverOpts := append([]search.Option{search.WithLogger(logger)}, options.retrieverOpts...)
	retriever, err := search.NewRetriever(dense, sparse, retrieverOpts...)
	if err != nil {
		provider.Close()
		closeStore()
		return nil, err
	}

	return &Database{
		backend:   backend,
		chunkRepo: chunkRepo,
		auditRepo: auditRepo,
		provider:  provider,
		dense:     dense,
		sparse:    sparse,
		retriever: retriever,
		logger:    logger,
	}, nil
}

// Close releases the provider, the repositories and the backend.
func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := db.auditRepo.Close(); err != nil {
		db.logger.Error("error closing audit repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.chunkRepo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		errs = append(errs, err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

func (db *Database) AuditRepository() storage.AuditRepository {
	return db.auditRepo
}

func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

func (db *Database) Logger() *slog.Logger {
	return db.logger
}

func (db *Database) SparseIndex() *index.Sparse {
	return db.sparse
}

// Rebuild rebuilds the sparse index from the current corpus.
func (db *Database) Rebuild(ctx context.Context) error {
	db.sparseMu.Lock()
	defer db.sparseMu.Unlock()
	return db.sparse.Rebuild(ctx)
}

// Retrieve answers q with the fusion ranker. The sparse index is built from
// the store on first use; afterwards it only changes through Rebuild.
func (db *Database) Retrieve(ctx context.Context, q core.RetrievalQuery) ([]core.ScoredResult, error) {
	if err := db.ensureSparse(ctx); err != nil {
		db.logger.Warn("sparse index build failed", "err", err)
	}
	return db.retriever.Retrieve(ctx, q)
}

func (db *Database) ensureSparse(ctx context.Context) error {
	if db.sparse.Built() {
		return nil
	}
	db.sparseMu.Lock()
	defer db.sparseMu.Unlock()
	if db.sparse.Built() {
		return nil
	}
	return db.sparse.Rebuild(ctx)
}

// NewIngestionPipeline creates a pipeline that rebuilds the sparse index after each ingestion.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithRebuilder(rebuilderFunc(db.Rebuild)),
	}
	return ingestion.NewPipeline(db.chunkRepo, db.provider.Embedder(), append(base, opts...)...)
}

// NewReembedder creates a reembedder over the chunk store.
func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.chunkRepo, db.provider.Embedder(), config, progress)
}

// RunnerOptions collects the options of every component behind a loop runner.
type RunnerOptions struct {
	Writer    []author.Option
	Evaluator []evaluate.Option
	Runner    []loop.Option
}

// NewRunner creates a convergence loop runner whose producer drafts from
// retrieved evidence and whose evaluator scores with the generator.
// Every iteration is appended to the audit log.
func (db *Database) NewRunner(opts RunnerOptions) (*loop.Runner, error) {
	generator := db.provider.Generator()

	writer, err := author.NewWriter(db, generator,
		append([]author.Option{author.WithLogger(db.logger)}, opts.Writer...)...)
	if err != nil {
		return nil, err
	}

	evaluator, err := evaluate.NewEvaluator(generator,
		append([]evaluate.Option{evaluate.WithLogger(db.logger)}, opts.Evaluator...)...)
	if err != nil {
		return nil, err
	}

	return loop.NewRunner(writer, evaluator, db.auditRepo,
		append([]loop.Option{loop.WithLogger(db.logger)}, opts.Runner...)...)
}

type rebuilderFunc func(ctx context.Context) error

func (f rebuilderFunc) Rebuild(ctx context.Context) error {
	return f(ctx)
}

var _ author.Retriever = (*Database)(nil)
