package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ysrn/ai"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/vecmath"
)

// embeddingProcessor generates unit-length embeddings for context blocks.
type embeddingProcessor struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(embedder ai.Embedder, logger *slog.Logger) (processor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder: embedder,
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the blocks' contents and stores normalized vectors on them.
func (ep *embeddingProcessor) process(ctx context.Context, blocks []*core.ContextBlock) error {
	if len(blocks) == 0 {
		return nil
	}

	texts := make([]string, len(blocks))
	for i, block := range blocks {
		texts[i] = block.Contents
	}

	ep.logger.Debug("generating embeddings for context blocks", "blocks", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(embeddings) != len(blocks) {
		return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(blocks), len(embeddings))
	}

	for i := range embeddings {
		blocks[i].Vector = vecmath.Normalize32(embeddings[i])
	}

	return nil
}
