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


package ysrn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/ysrn/ai"
	"github.com/poiesic/ysrn/ai/openai"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/decompose"
	"github.com/poiesic/ysrn/ingestion"
	"github.com/poiesic/ysrn/pipeline"
	"github.com/poiesic/ysrn/reembed"
	"github.com/poiesic/ysrn/retrieval"
	"github.com/poiesic/ysrn/search"
	"github.com/poiesic/ysrn/storage"
	"github.com/poiesic/ysrn/storage/badger"
)

// WeightsCheckpoint is the checkpoint name gate weights are stored under.
const WeightsCheckpoint = "gate-weights"

// ErrWeightsNotFound is returned by LoadWeights when no weights have been saved.
var ErrWeightsNotFound = errors.New("gate weights not found")

type Database struct {
	backend        *badger.Backend
	contextRepo    storage.ContextRepository
	checkpointRepo storage.CheckpointRepository
	provider       ai.AIProvider
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses an existing provider instead of building one from the
// AI configuration. The database takes ownership and closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory. The path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	contextRepo, err := badger.NewContextRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	checkpointRepo := badger.NewCheckpointRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			contextRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:        backend,
		contextRepo:    contextRepo,
		checkpointRepo: checkpointRepo,
		provider:       provider,
		logger:         options.logger,
	}, nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.contextRepo.Close(); err != nil {
		db.logger.Error("error closing context repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) ContextRepository() storage.ContextRepository {
	return db.contextRepo
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpointRepo
}

func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.contextRepo, db.provider, opts...)
}

// NewPipeline builds a retrieval-classification pipeline over the given gate
// weights. retrieverOpts and engineOpts configure the retriever and the
// decomposition engine.
func (db *Database) NewPipeline(weights *retrieval.Weights, retrieverOpts []retrieval.Option, engineOpts []decompose.Option, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	retriever, err := retrieval.NewRetriever(weights, retrieverOpts...)
	if err != nil {
		return nil, err
	}
	engine, err := decompose.NewEngine(engineOpts...)
	if err != nil {
		return nil, err
	}
	return pipeline.NewPipeline(retriever, engine, opts...)
}

func (db *Database) NewSearcher(p *pipeline.Pipeline, opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.contextRepo, db.provider, p, opts...)
}

func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(db.contextRepo, db.provider.Embedder(), config, progress)
}

// SaveWeights persists gate weights, replacing any saved earlier.
func (db *Database) SaveWeights(ctx context.Context, weights *retrieval.Weights) error {
	data, err := weights.MarshalBinary()
	if err != nil {
		return err
	}
	return db.checkpointRepo.SaveCheckpoint(ctx, &core.Checkpoint{
		Name: WeightsCheckpoint,
		Data: data,
	})
}

// LoadWeights reads saved gate weights. Returns ErrWeightsNotFound if none
// were saved.
func (db *Database) LoadWeights(ctx context.Context) (*retrieval.Weights, error) {
	checkpoint, err := db.checkpointRepo.LoadCheckpoint(ctx, WeightsCheckpoint)
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, ErrWeightsNotFound
	}
	return retrieval.UnmarshalWeights(checkpoint.Data)
}

// DeleteWeights removes saved gate weights. Returns ErrWeightsNotFound if
// none were saved.
func (db *Database) DeleteWeights(ctx context.Context) error {
	err := db.checkpointRepo.DeleteCheckpoint(ctx, WeightsCheckpoint)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrWeightsNotFound
	}
	return err
}

// LoadOrSeedWeights returns the saved gate weights, or seeds, saves and
// returns fresh dim x hidden weights when none exist. Saved weights of a
// different shape are an error.
func (db *Database) LoadOrSeedWeights(ctx context.Context, dim, hidden int, init retrieval.GateInit) (*retrieval.Weights, error) {
	weights, err := db.LoadWeights(ctx)
	if err == nil {
		if d, h := weights.Dims(); d != dim || h != hidden {
			return nil, fmt.Errorf("%w: saved weights are %dx%d, want %dx%d", retrieval.ErrInvalidWeights, d, h, dim, hidden)
		}
		return weights, nil
	}
	if !errors.Is(err, ErrWeightsNotFound) {
		return nil, err
	}

	weights, err = retrieval.SeededWeights(dim, hidden, init)
	if err != nil {
		return nil, err
	}
	if err := db.SaveWeights(ctx, weights); err != nil {
		return nil, err
	}
	db.logger.Info("seeded gate weights", "dim", dim, "hidden", hidden, "seed", init.Seed)
	return weights, nil
}
