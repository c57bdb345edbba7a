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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ysrn/ai"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of contexts to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of contexts)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed embedding calls
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder re-encodes every stored context block with the configured
// embedder. Use it after switching embedding models; vectors from different
// models are not comparable.
type Reembedder struct {
	repo      storage.ContextRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ContextIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.ContextRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewContextIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembed"),
	}
}

// Run executes the reembedding operation and returns the number of contexts
// processed.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.repo.CountContexts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count contexts: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No contexts found in database (0 contexts)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d contexts (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgress(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(blocks []*core.ContextBlock) error {
		if err := r.processor.Process(ctx, blocks); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(blocks)
		tracker.Add(len(blocks))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", processed, "total", total, "err", err)
		return processed, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d contexts in %v (%.1f contexts/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/elapsed.Seconds())
	r.logger.Info("reembedding complete", "processed", processed, "elapsed", elapsed)

	return processed, nil
}
