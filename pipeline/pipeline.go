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


package pipeline

import (
	"cmp"
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/decompose"
	"github.com/poiesic/ysrn/retrieval"
)

// DefaultTopK is the number of candidates kept by gated retrieval when the
// caller does not ask for a specific count.
const DefaultTopK = 10

// Pipeline runs gated retrieval followed by decomposition-based
// classification.
type Pipeline struct {
	retriever *retrieval.Retriever
	engine    *decompose.Engine
	pool      *ants.Pool
	topK      int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for batch classification.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithTopK sets the default number of candidates kept by retrieval.
// Default is 10.
func WithTopK(topK int) Option {
	return func(p *Pipeline) error {
		if topK < 1 {
			topK = DefaultTopK
		}
		p.topK = topK
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

// NewPipeline creates a new retrieval-classification pipeline.
func NewPipeline(retriever *retrieval.Retriever, engine *decompose.Engine, opts ...Option) (*Pipeline, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if engine == nil {
		return nil, ErrEngineRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		retriever: retriever,
		engine:    engine,
		pool:      pool,
		topK:      DefaultTopK,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Classify scores a single block against the query. The block is not
// modified; a scored copy is returned.
func (p *Pipeline) Classify(block *core.ContextBlock, query *core.Query) (core.ContextBlock, error) {
	return p.engine.Classify(block, query)
}

// ClassifyBatch classifies blocks concurrently on the worker pool. The
// result has the same order as blocks and is identical to calling Classify
// on each block. The first failing block, in input order, determines the
// returned error.
func (p *Pipeline) ClassifyBatch(ctx context.Context, blocks []*core.ContextBlock, query *core.Query) ([]core.ContextBlock, error) {
	out := make([]core.ContextBlock, len(blocks))
	errs := make([]error, len(blocks))

	var wg sync.WaitGroup
	for i, block := range blocks {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			out[i], errs[i] = p.engine.Classify(block, query)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Run ranks candidates for the query. A topK below 1 uses the pipeline
// default.
func (p *Pipeline) Run(ctx context.Context, query *core.Query, candidates []*core.ContextBlock, topK int) (*core.QueryResult, error) {
	return p.RunWithMonitor(ctx, query, candidates, topK, nil)
}

// RunWithMonitor ranks candidates for the query with monitoring.
// The monitor receives callbacks at each stage of the run.
func (p *Pipeline) RunWithMonitor(ctx context.Context, query *core.Query, candidates []*core.ContextBlock, topK int, monitor Monitor) (*core.QueryResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if query == nil {
		return nil, ErrQueryRequired
	}
	if len(query.Vector) == 0 {
		return nil, core.ErrEmbeddingRequired
	}
	if topK < 1 {
		topK = p.topK
	}

	start := time.Now()
	monitor.Start(query)

	// 1. Narrow the pool with gated retrieval
	ranked, err := p.retriever.Retrieve(query, candidates, topK)
	if err != nil {
		p.logger.Error("error during gated retrieval", "query", query.Id, "err", err)
		return nil, err
	}
	monitor.AfterRetrieval(ranked)

	// 2. Classify the survivors
	blocks := make([]*core.ContextBlock, len(ranked))
	for i, rc := range ranked {
		blocks[i] = rc.Context
	}
	classified, err := p.ClassifyBatch(ctx, blocks, query)
	if err != nil {
		p.logger.Error("error classifying contexts", "query", query.Id, "err", err)
		return nil, err
	}
	monitor.AfterClassification(classified)

	// 3. Final ordering by relevance ratio
	slices.SortStableFunc(classified, func(a, b core.ContextBlock) int {
		return cmp.Compare(b.Scores.Relevance, a.Scores.Relevance)
	})

	meanRelevance, meanNoise := meanScores(classified)
	result := &core.QueryResult{
		QueryId:         query.Id,
		Contexts:        classified,
		TotalCandidates: len(candidates),
		MeanRelevance:   meanRelevance,
		MeanNoise:       meanNoise,
		Elapsed:         time.Since(start),
	}
	monitor.Finish(result)

	p.logger.Debug("query ranked",
		"query", query.Id,
		"candidates", len(candidates),
		"returned", len(classified),
		"meanRelevance", meanRelevance,
		"meanNoise", meanNoise)

	return result, nil
}

// meanScores returns the mean relevance and noise, or zeros for an empty list.
func meanScores(blocks []core.ContextBlock) (relevance, noise float64) {
	if len(blocks) == 0 {
		return 0, 0
	}
	for _, b := range blocks {
		relevance += b.Scores.Relevance
		noise += b.Scores.Noise
	}
	n := float64(len(blocks))
	return relevance / n, noise / n
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
