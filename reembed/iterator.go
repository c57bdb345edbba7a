package reembed

import (
	"context"

	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/storage"
)

const (
	// DefaultBatchSize is the default number of contexts to fetch in each batch
	DefaultBatchSize = 100
)

// ContextIterator pages over all stored context blocks in ID order.
type ContextIterator struct {
	repo      storage.ContextRepository
	batchSize int
}

// NewContextIterator creates a new context iterator.
// A batchSize of 0 or less uses DefaultBatchSize.
func NewContextIterator(repo storage.ContextRepository, batchSize int) *ContextIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ContextIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of stored contexts.
// Iteration stops on the first error from fn or when all contexts are
// processed. Context cancellation is checked between batches. Each page is
// fetched fresh, so fn may update the blocks it receives.
func (it *ContextIterator) ForEach(ctx context.Context, fn func([]*core.ContextBlock) error) error {
	var after core.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.repo.ListContexts(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		// Capture the cursor before fn can touch the blocks
		after = batch[len(batch)-1].Id

		if err := fn(batch); err != nil {
			return err
		}

		if len(batch) < it.batchSize {
			return nil
		}
	}
}
