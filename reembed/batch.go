package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ysrn/ai"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/storage"
	"github.com/poiesic/ysrn/vecmath"
)

// BatchProcessor re-embeds batches of context blocks.
type BatchProcessor struct {
	repo     storage.ContextRepository
	embedder ai.Embedder
	backoff  Backoff
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.ContextRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		backoff: Backoff{
			Attempts:  maxRetries,
			BaseDelay: retryBaseDelay,
			Logger:    slog.Default().With("component", "reembed"),
		},
	}
}

// Process embeds the blocks' contents, stores normalized vectors and clears
// any classification scores, which were computed against the old vectors.
func (bp *BatchProcessor) Process(ctx context.Context, blocks []*core.ContextBlock) error {
	if len(blocks) == 0 {
		return nil
	}

	texts := make([]string, len(blocks))
	for i, block := range blocks {
		texts[i] = block.Contents
	}

	var embeddings [][]float32
	err := bp.backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.backoff.Attempts, err)
	}

	if len(embeddings) != len(blocks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(blocks), len(embeddings))
	}

	for i, block := range blocks {
		block.Vector = vecmath.Normalize32(embeddings[i])
		block.Scores = nil
	}

	if _, err := bp.repo.UpdateContexts(ctx, blocks...); err != nil {
		return fmt.Errorf("failed to update contexts: %w", err)
	}

	return nil
}
