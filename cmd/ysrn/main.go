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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/ysrn"
	"github.com/poiesic/ysrn/config"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/ingestion"
	"github.com/poiesic/ysrn/pipeline"
	"github.com/poiesic/ysrn/reembed"
	"github.com/poiesic/ysrn/retrieval"
	"github.com/poiesic/ysrn/search"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ysrn",
		Usage: "Decompose retrieved context into relevant, superfluous and noise components",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"YSRN_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Embed and store context blocks",
				ArgsUsage: "[text...]",
				Action:    addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read one context per line from file (- for stdin)",
					},
					&cli.StringSliceFlag{
						Name:  "meta",
						Usage: "Metadata key=value attached to every block",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of lines to ingest per batch",
						Value: 32,
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Rank and classify stored contexts for a query",
				ArgsUsage: "<text>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of contexts to return (overrides config)",
					},
					&cli.StringSliceFlag{
						Name:  "constraint",
						Usage: "Constraint label carried on the query",
					},
				},
			},
			{
				Name:   "init-weights",
				Usage:  "Seed gate weights and store them in the database",
				Action: initWeightsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Replace existing weights",
					},
				},
			},
			{
				Name:   "reset-weights",
				Usage:  "Delete stored gate weights",
				Action: resetWeightsCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored contexts with the configured model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of contexts to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N contexts",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show database statistics",
				Action: statsCommand,
			},
		},
	}
}

// loadConfig loads configuration and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, errs := config.Load(c.String("config"))
	if cfg == nil {
		return nil, errors.Join(errs...)
	}
	// Validation runs again once the flags are applied; only parse errors carry over
	var parseErrs []error
	for _, err := range errs {
		if errors.Is(err, config.ErrInvalidNumber) {
			parseErrs = append(parseErrs, err)
		}
	}
	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(parseErrs...))
	}
	if db := c.String("db"); db != "" {
		cfg.DatabasePath = db
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*ysrn.Database, error) {
	db, err := ysrn.NewDatabase(cfg.DatabasePath, ysrn.WithAIConfig(cfg.AIConfig()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func addCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	metadata, err := parseMetadata(c.StringSlice("meta"))
	if err != nil {
		return err
	}

	texts := c.Args().Slice()
	if path := c.String("file"); path != "" {
		lines, err := readLines(path)
		if err != nil {
			return err
		}
		texts = append(texts, lines...)
	}
	if len(texts) == 0 {
		return fmt.Errorf("no contexts to add: pass text arguments or --file")
	}
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var ingestOpts []ingestion.Option
	if cfg.PoolSize > 0 {
		ingestOpts = append(ingestOpts, ingestion.WithPoolSize(cfg.PoolSize))
	}
	ingester, err := db.NewIngestionPipeline(ingestOpts...)
	if err != nil {
		return err
	}
	defer ingester.Release()

	added := 0
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		blocks, err := ingester.Ingest(ctx, texts[start:end], &ingestion.IngestOptions{Metadata: metadata})
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		added += len(blocks)
	}

	fmt.Fprintf(c.App.Writer, "Added %d contexts\n", added)
	return nil
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("query text is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	topK := cfg.TopK
	if c.IsSet("top-k") {
		topK = c.Int("top-k")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	weights, err := db.LoadOrSeedWeights(ctx, cfg.EmbeddingDimension, cfg.GateWidth(), cfg.GateInit())
	if err != nil {
		return err
	}

	pipelineOpts := []pipeline.Option{pipeline.WithTopK(cfg.TopK)}
	if cfg.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, pipeline.WithPoolSize(cfg.PoolSize))
	}
	p, err := db.NewPipeline(weights,
		[]retrieval.Option{retrieval.WithHeads(cfg.NumHeads, cfg.HeadDim)},
		cfg.EngineOptions(),
		pipelineOpts...)
	if err != nil {
		return err
	}
	defer p.Release()

	searcher, err := db.NewSearcher(p, search.WithCandidatePool(cfg.CandidatePool))
	if err != nil {
		return err
	}

	result, err := searcher.Search(ctx, text, c.StringSlice("constraint"), topK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *core.QueryResult) {
	fmt.Fprintf(w, "Query %s: %d of %d candidates in %s\n",
		result.QueryId, len(result.Contexts), result.TotalCandidates, result.Elapsed.Round(time.Millisecond))
	for i, block := range result.Contexts {
		s := block.Scores
		fmt.Fprintf(w, "%d: '%s' (%d) [R=%0.3f S=%0.3f N=%0.3f]\n",
			i, block.Contents, block.Id, s.Relevance, s.Superfluous, s.Noise)
	}
	fmt.Fprintf(w, "Mean relevance %0.3f, mean noise %0.3f\n", result.MeanRelevance, result.MeanNoise)
}

func initWeightsCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if !c.Bool("force") {
		if _, err := db.LoadWeights(ctx); err == nil {
			return fmt.Errorf("gate weights already exist; use --force to replace them")
		} else if !errors.Is(err, ysrn.ErrWeightsNotFound) {
			return err
		}
	}

	weights, err := retrieval.SeededWeights(cfg.EmbeddingDimension, cfg.GateWidth(), cfg.GateInit())
	if err != nil {
		return err
	}
	if err := db.SaveWeights(ctx, weights); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Seeded %dx%d gate weights (seed %d)\n", cfg.EmbeddingDimension, cfg.GateWidth(), cfg.GateSeed)
	return nil
}

func resetWeightsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteWeights(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Deleted gate weights")
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.DatabasePath)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if _, err := db.NewReembedder(reembedConfig, os.Stderr).Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := db.ContextRepository().CountContexts(ctx)
	if err != nil {
		return err
	}

	weights := "not initialized"
	if w, err := db.LoadWeights(ctx); err == nil {
		dim, hidden := w.Dims()
		weights = fmt.Sprintf("%dx%d", dim, hidden)
	} else if !errors.Is(err, ysrn.ErrWeightsNotFound) {
		return err
	}

	checkpoints, err := db.CheckpointRepository().ListCheckpoints(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Contexts: %d\nGate weights: %s\n", count, weights)
	for _, cp := range checkpoints {
		fmt.Fprintf(c.App.Writer, "Checkpoint %s: %d bytes, updated %s\n", cp.Name, len(cp.Data), cp.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// parseMetadata turns key=value pairs into a map.
func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	md := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", pair)
		}
		md[k] = v
	}
	return md, nil
}

// readLines returns the non-blank lines of a file, or of stdin for "-".
func readLines(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func setupLogger(c *cli.Context) error {
	// Flag wins over the YSRN_LOG_LEVEL environment variable
	levelStr := strings.ToLower(c.String("log-level"))
	if levelStr == "" {
		levelStr = strings.ToLower(os.Getenv(config.EnvPrefix + "LOG_LEVEL"))
	}
	if levelStr == "" {
		levelStr = config.DefaultLogLevel
	}

	// Map string to slog.Level
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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
