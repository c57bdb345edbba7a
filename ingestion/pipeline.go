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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ysrn/ai"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/storage"
)

// DefaultChunkSize is the number of texts sent to the embedder per request.
const DefaultChunkSize = 32

// Pipeline embeds text and stores it as context blocks.
// Embedding requests are split into chunks and run concurrently.
type Pipeline struct {
	repository    storage.ContextRepository
	embeddingPool *ants.Pool
	embeddingProc processor
	chunkSize     int
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithChunkSize sets how many texts are embedded per request.
// Default is 32.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = DefaultChunkSize
		}
		p.chunkSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(repository storage.ContextRepository, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository:    repository,
		embeddingPool: embeddingPool,
		chunkSize:     DefaultChunkSize,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create the processor after options are applied (so it gets the final logger)
	embeddingProc, err := newEmbeddingProcessor(provider.Embedder(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	Metadata map[string]string // Optional metadata copied onto every block
}

// Ingest embeds texts and stores them as context blocks with content-derived
// IDs. Repeated texts within a batch are stored once. The stored blocks are
// returned in first-occurrence order.
func (p *Pipeline) Ingest(ctx context.Context, texts []string, opts *IngestOptions) ([]*core.ContextBlock, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	seen := make(map[core.ID]bool, len(texts))
	blocks := make([]*core.ContextBlock, 0, len(texts))
	for _, text := range texts {
		block := &core.ContextBlock{
			Id:       core.IDFromContent(text),
			Contents: text,
		}
		if len(opts.Metadata) > 0 {
			block.Metadata = maps.Clone(opts.Metadata)
		}
		if err := core.ValidateContextBlock(block); err != nil {
			return nil, err
		}
		if seen[block.Id] {
			continue
		}
		seen[block.Id] = true
		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		return []*core.ContextBlock{}, nil
	}

	if err := p.embed(ctx, blocks); err != nil {
		return nil, err
	}

	dim := len(blocks[0].Vector)
	for _, block := range blocks[1:] {
		if len(block.Vector) != dim {
			return nil, fmt.Errorf("%w: context %d has %d, expected %d",
				core.ErrDimensionMismatch, block.Id, len(block.Vector), dim)
		}
	}

	added, err := p.repository.AddContexts(ctx, blocks...)
	if err != nil {
		p.logger.Error("error storing context blocks", "err", err)
		return nil, err
	}

	p.logger.Info("ingested context blocks", "blocks", len(added), "dimension", dim)
	return added, nil
}

// embed runs the embedding processor over chunks of blocks on the worker
// pool. The first failing chunk, in input order, determines the error.
func (p *Pipeline) embed(ctx context.Context, blocks []*core.ContextBlock) error {
	var chunks [][]*core.ContextBlock
	for i := 0; i < len(blocks); i += p.chunkSize {
		end := min(i+p.chunkSize, len(blocks))
		chunks = append(chunks, blocks[i:end])
	}

	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = p.embeddingProc.process(ctx, chunk)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
