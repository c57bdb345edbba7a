package ysrn

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ysrn/ai/mock"
	"github.com/poiesic/ysrn/reembed"
	"github.com/poiesic/ysrn/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) (*Database, *mock.MockProvider) {
	t.Helper()
	provider := mock.NewMockProvider().(*mock.MockProvider)
	db, err := NewDatabase("", WithInMemory(), WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, provider
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.ContextRepository())
		assert.NotNil(t, db.CheckpointRepository())
		assert.NotNil(t, db.Provider())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	provider := mock.NewMockProvider().(*mock.MockProvider)
	db, err := NewDatabase(t.TempDir(), WithProvider(provider))
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.True(t, provider.Closed())
}

func TestDatabase_Weights(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	_, err := db.LoadWeights(ctx)
	assert.ErrorIs(t, err, ErrWeightsNotFound)

	seeded, err := db.LoadOrSeedWeights(ctx, 16, 8, retrieval.DefaultGateInit(3))
	require.NoError(t, err)

	loaded, err := db.LoadWeights(ctx)
	require.NoError(t, err)
	dim, hidden := loaded.Dims()
	assert.Equal(t, 16, dim)
	assert.Equal(t, 8, hidden)
	assert.Equal(t, seeded.Bias, loaded.Bias)
	assert.Equal(t, seeded.Gate.RawMatrix().Data, loaded.Gate.RawMatrix().Data)

	// A different seed does not replace saved weights
	again, err := db.LoadOrSeedWeights(ctx, 16, 8, retrieval.DefaultGateInit(99))
	require.NoError(t, err)
	assert.Equal(t, seeded.Gate.RawMatrix().Data, again.Gate.RawMatrix().Data)

	_, err = db.LoadOrSeedWeights(ctx, 32, 8, retrieval.DefaultGateInit(3))
	assert.ErrorIs(t, err, retrieval.ErrInvalidWeights)

	require.NoError(t, db.DeleteWeights(ctx))
	assert.ErrorIs(t, db.DeleteWeights(ctx), ErrWeightsNotFound)

	reseeded, err := db.LoadOrSeedWeights(ctx, 32, 8, retrieval.DefaultGateInit(3))
	require.NoError(t, err)
	dim, _ = reseeded.Dims()
	assert.Equal(t, 32, dim)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, provider := newTestDatabase(t)
	ctx := context.Background()

	ingester, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer ingester.Release()

	_, err = ingester.Ingest(ctx, []string{
		"Quarterly retail revenue grew eight percent",
		"The retail report forecasts further revenue growth",
		"Sourdough needs flour, water and salt",
	}, nil)
	require.NoError(t, err)

	dim := provider.GetMockEmbedder().Dimension()
	weights, err := db.LoadOrSeedWeights(ctx, dim, 64, retrieval.DefaultGateInit(1))
	require.NoError(t, err)

	p, err := db.NewPipeline(weights, []retrieval.Option{retrieval.WithHeads(4, 16)}, nil)
	require.NoError(t, err)
	defer p.Release()

	searcher, err := db.NewSearcher(p)
	require.NoError(t, err)

	result, err := searcher.Search(ctx, "retail revenue", nil, 2)
	require.NoError(t, err)
	assert.Len(t, result.Contexts, 2)
	assert.Equal(t, 3, result.TotalCandidates)

	reembedder := db.NewReembedder(reembed.DefaultConfig(), io.Discard)
	count, err := reembedder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
