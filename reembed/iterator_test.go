package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/storage"
	"github.com/poiesic/ysrn/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) storage.ContextRepository {
	t.Helper()
	contexts, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		contexts.Close()
		backend.Close()
	})
	return contexts
}

func seedContexts(t *testing.T, repo storage.ContextRepository, n int) []*core.ContextBlock {
	t.Helper()
	blocks := make([]*core.ContextBlock, n)
	for i := range blocks {
		blocks[i] = &core.ContextBlock{
			Contents: fmt.Sprintf("context number %d", i),
			Vector:   core.Embedding{1, 0, 0},
		}
	}
	added, err := repo.AddContexts(context.Background(), blocks...)
	require.NoError(t, err)
	return added
}

func TestContextIterator_BatchSizes(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		batchSize int
		batches   int
	}{
		{"exact multiple", 9, 3, 3},
		{"remainder", 10, 3, 4},
		{"single batch", 5, 10, 1},
		{"batch of one", 4, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestDB(t)
			seedContexts(t, repo, tt.total)

			it := NewContextIterator(repo, tt.batchSize)
			batches := 0
			seen := map[core.ID]bool{}
			err := it.ForEach(context.Background(), func(blocks []*core.ContextBlock) error {
				batches++
				assert.LessOrEqual(t, len(blocks), tt.batchSize)
				for _, b := range blocks {
					assert.False(t, seen[b.Id], "context %d visited twice", b.Id)
					seen[b.Id] = true
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.batches, batches)
			assert.Len(t, seen, tt.total)
		})
	}
}

func TestContextIterator_EmptyDatabase(t *testing.T) {
	repo := setupTestDB(t)
	called := false
	err := NewContextIterator(repo, 10).ForEach(context.Background(), func([]*core.ContextBlock) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestContextIterator_StopsOnError(t *testing.T) {
	repo := setupTestDB(t)
	seedContexts(t, repo, 10)

	stop := errors.New("stop")
	batches := 0
	err := NewContextIterator(repo, 3).ForEach(context.Background(), func([]*core.ContextBlock) error {
		batches++
		if batches == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, batches)
}

func TestContextIterator_ContextCancellation(t *testing.T) {
	repo := setupTestDB(t)
	seedContexts(t, repo, 10)

	ctx, cancel := context.WithCancel(context.Background())
	batches := 0
	err := NewContextIterator(repo, 3).ForEach(ctx, func([]*core.ContextBlock) error {
		batches++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)
}

func TestContextIterator_InvalidBatchSize(t *testing.T) {
	repo := setupTestDB(t)
	assert.Equal(t, DefaultBatchSize, NewContextIterator(repo, 0).batchSize)
	assert.Equal(t, DefaultBatchSize, NewContextIterator(repo, -5).batchSize)
}
