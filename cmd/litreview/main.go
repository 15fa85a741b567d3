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

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/litreview"
	"github.com/poiesic/litreview/ai/openai"
	"github.com/poiesic/litreview/config"
)

// newProvider builds the AI provider for commands that need one.
var newProvider = openai.NewProvider

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "litreview",
		Usage: "Retrieve research evidence and iteratively draft literature reviews",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"LITREVIEW_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Ingest publication lists and optionally watch a directory for new ones",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Publication list JSON file (repeatable)",
					},
					&cli.StringFlag{
						Name:  "watch",
						Usage: "Directory to watch for new publication files (overrides ingestion.watch_dir)",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Chunk size in characters",
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Characters shared by neighbouring chunks",
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent embedding workers",
					},
				},
			},
			{
				Name:   "rebuild",
				Usage:  "Build the sparse index from the stored corpus and report its size",
				Action: rebuildCommand,
			},
			{
				Name:   "search",
				Usage:  "Query the corpus",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
					},
					&cli.StringFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Retrieval strategy (dense, sparse, hybrid)",
					},
					&cli.Float64Flag{
						Name:    "weight",
						Aliases: []string{"w"},
						Usage:   "Dense weight for hybrid retrieval, within [0,1]",
					},
					&cli.IntFlag{
						Name:  "min-year",
						Usage: "Only return publications from this year or later",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only return publications from this source (arxiv, openalex)",
					},
				},
			},
			{
				Name:   "run",
				Usage:  "Draft and revise a literature review until it reaches the target score",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "topic",
						Aliases:  []string{"t"},
						Usage:    "Research topic",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "target",
						Usage: "Target score on the 0-10 scale",
					},
					&cli.IntFlag{
						Name:  "max-iterations",
						Usage: "Last iteration index that may be attempted",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the final artifact to this file instead of stdout",
					},
					&cli.StringFlag{
						Name:  "out-dir",
						Usage: "Directory for per-iteration revisions (overrides loop.output_dir)",
					},
				},
			},
			{
				Name:   "audit",
				Usage:  "List runs, or the iterations of one run",
				Action: auditCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "run",
						Aliases: []string{"r"},
						Usage:   "Run id",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed every stored chunk with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
		cfg.Storage.InMemory = false
	}
	return cfg, nil
}

// openDatabase opens the store with the provider built from cfg.
func openDatabase(cfg *config.Config) (*litreview.Database, error) {
	aiCfg := cfg.AIConfig()
	provider, err := newProvider(aiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}

	opts := []litreview.DatabaseOption{
		litreview.WithProvider(provider),
		litreview.WithLogger(slog.Default()),
		litreview.WithRetrieverOptions(retrieverOptions(cfg)...),
	}
	if cfg.Storage.InMemory {
		opts = append(opts, litreview.WithInMemory())
	}

	db, err := litreview.NewDatabase(cfg.Storage.Path, opts...)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
