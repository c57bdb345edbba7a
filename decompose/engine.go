package decompose

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/ysrn/core"
	"gonum.org/v1/gonum/mat"
)

// Engine classifies context blocks against queries by decomposition.
// An Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	params Params
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithNoiseThreshold sets the share of residual energy classified as noise.
// Default is 0.1.
func WithNoiseThreshold(threshold float64) Option {
	return func(e *Engine) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: noise threshold %v", ErrInvalidThreshold, threshold)
		}
		e.params.NoiseThreshold = threshold
		return nil
	}
}

// WithRelevanceThreshold sets the relevance ratio at which a decomposition
// is flagged as relevant. Default is 0.3.
func WithRelevanceThreshold(threshold float64) Option {
	return func(e *Engine) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: relevance threshold %v", ErrInvalidThreshold, threshold)
		}
		e.params.RelevanceThreshold = threshold
		return nil
	}
}

// WithBlockSize sets the residual block width used by the spectral split.
// Default is 1 (single column). Sizes that do not divide the embedding
// dimension fall back to a single column.
func WithBlockSize(size int) Option {
	return func(e *Engine) error {
		if size < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidBlockSize, size)
		}
		e.params.BlockSize = size
		return nil
	}
}

// WithRefinement sets a learned d x d projection applied to the query
// projection. The matrix is copied.
func WithRefinement(w mat.Matrix) Option {
	return func(e *Engine) error {
		if w == nil {
			e.params.Refinement = nil
			return nil
		}
		rows, cols := w.Dims()
		if rows != cols {
			return fmt.Errorf("%w: got %dx%d", ErrInvalidRefinement, rows, cols)
		}
		e.params.Refinement = mat.DenseCopyOf(w)
		return nil
	}
}

// NewEngine creates a decomposition engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		params: DefaultParams(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "decompose")

	return e, nil
}

// Params returns a copy of the engine parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Decompose splits a candidate embedding relative to a query embedding.
func (e *Engine) Decompose(candidate, query core.Embedding) (*core.Decomposition, error) {
	if len(candidate) == 0 || len(query) == 0 {
		return nil, core.ErrEmbeddingRequired
	}
	d, degenerate, err := decompose(candidate.Float64(), query.Float64(), e.params)
	if err != nil {
		return nil, err
	}
	if degenerate {
		e.logger.Debug("degenerate residual, using single-component split",
			"dim", len(candidate), "noiseRatio", d.NoiseRatio)
	}
	return d, nil
}

// BatchDecompose decomposes each candidate independently, preserving order.
func (e *Engine) BatchDecompose(candidates []core.Embedding, query core.Embedding) ([]*core.Decomposition, error) {
	results := make([]*core.Decomposition, len(candidates))
	for i, c := range candidates {
		d, err := e.Decompose(c, query)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		results[i] = d
	}
	return results, nil
}

// Classify returns a copy of block carrying the decomposition ratios as its
// scores. The block passed in is not modified.
func (e *Engine) Classify(block *core.ContextBlock, query *core.Query) (core.ContextBlock, error) {
	if block == nil || query == nil {
		return core.ContextBlock{}, core.ErrEmbeddingRequired
	}
	if len(block.Vector) == 0 {
		return core.ContextBlock{}, fmt.Errorf("%w: context %d", core.ErrEmbeddingRequired, block.Id)
	}
	if len(query.Vector) == 0 {
		return core.ContextBlock{}, fmt.Errorf("%w: query %q", core.ErrEmbeddingRequired, query.Id)
	}

	d, err := e.Decompose(block.Vector, query.Vector)
	if err != nil {
		return core.ContextBlock{}, fmt.Errorf("context %d: %w", block.Id, err)
	}
	return block.WithScores(d.Scores()), nil
}

// BatchClassify classifies each block independently, preserving order.
func (e *Engine) BatchClassify(blocks []*core.ContextBlock, query *core.Query) ([]core.ContextBlock, error) {
	out := make([]core.ContextBlock, len(blocks))
	for i, b := range blocks {
		scored, err := e.Classify(b, query)
		if err != nil {
			return nil, err
		}
		out[i] = scored
	}
	return out, nil
}
