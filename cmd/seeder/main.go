package main

import (
	"bufio"
	"context"
	"flag"
	"iter"
	"log/slog"
	"os"
	"slices"

	"github.com/poiesic/ysrn"
	"github.com/poiesic/ysrn/config"
	"github.com/poiesic/ysrn/ingestion"
)

// sentences mixes a few topical clusters with unrelated filler so that
// queries produce a visible spread of relevant, superfluous and noise scores.
var sentences = []string{
	"Quarterly revenue in the retail segment grew eight percent year over year.",
	"Retail store traffic rose after the holiday promotion ended.",
	"The board revised its retail revenue forecast upward for next year.",
	"Operating margin narrowed because of higher shipping costs.",
	"Online sales now account for a third of total retail revenue.",
	"The company opened twelve new stores in the northeast region.",
	"Inventory turnover improved compared with the previous quarter.",
	"Analysts expect the retail division to outperform the wholesale division.",
	"The Krebs cycle produces NADH and FADH2 for oxidative phosphorylation.",
	"Mitochondria generate most of the cell's supply of ATP.",
	"Glycolysis breaks glucose down into two molecules of pyruvate.",
	"The electron transport chain pumps protons across the inner membrane.",
	"ATP synthase uses the proton gradient to phosphorylate ADP.",
	"Photosynthesis converts light energy into chemical energy in chloroplasts.",
	"The Treaty of Westphalia ended the Thirty Years' War in 1648.",
	"The printing press spread rapidly across Europe in the fifteenth century.",
	"The Silk Road connected traders from China to the Mediterranean.",
	"The Magna Carta limited the power of the English crown in 1215.",
	"A sourdough starter needs regular feeding with flour and water.",
	"Knead the dough until it springs back when pressed.",
	"Preheat the oven with a cast iron pot inside before baking bread.",
	"The hiking trail closes at dusk during the winter months.",
	"Bring at least two liters of water on the ridge trail.",
	"The lighthouse beam cut through fog, guiding sailors safely.",
	"A lone wolf howled, echoing into the vast night.",
	"The old clock chimed thirteen times in an abandoned town.",
	"Seventeen geese unanimously voted to relocate the pond.",
	"The garbage collector went on strike.",
	"Gravity works part-time on weekends.",
	"Thursdays were canceled due to budget constraints.",
}

var (
	seedFileName = flag.String("src", "", "file of seed data, one context per line")
	configPath   = flag.String("config", "", "path to YAML config file")
	batchSize    = flag.Int("batch", 5, "contexts per ingestion batch")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if scanner.Text() == "" {
				continue
			}
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// ingestBatched reads from a source iterator and ingests contexts in batches.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq[string], size int) (int, error) {
	batch := make([]string, 0, size)
	total := 0

	flush := func() error {
		blocks, err := pipeline.Ingest(ctx, batch, nil)
		total += len(blocks)
		batch = batch[:0]
		return err
	}

	for line := range source {
		batch = append(batch, line)
		if len(batch) == size {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return total, err
		}
	}

	return total, nil
}

func main() {
	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "err", err)
		}
		os.Exit(1)
	}
	slog.Info("configuration", "values", cfg.LogSummary())

	db, err := ysrn.NewDatabase(cfg.DatabasePath, ysrn.WithAIConfig(cfg.AIConfig()))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ingester, err := db.NewIngestionPipeline()
	if err != nil {
		panic(err)
	}
	defer ingester.Release()

	ctx := context.Background()

	// Determine source of seed data
	source := slices.Values(sentences)
	if *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	}

	total, err := ingestBatched(ctx, ingester, source, max(*batchSize, 1))
	if err != nil {
		panic(err)
	}
	slog.Info("seeding complete", "contexts", total)
}
