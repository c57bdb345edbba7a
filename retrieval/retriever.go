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


package retrieval

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/vecmath"
	"gonum.org/v1/gonum/mat"
)

// Retriever re-ranks candidates with gated attention.
// A Retriever never modifies the candidates passed to it and is safe for
// concurrent use.
type Retriever struct {
	weights  *Weights
	numHeads int
	headDim  int
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithHeads records the head layout of the gate. numHeads*headDim must equal
// the gate width. Scoring uses a single global gate regardless of the head
// layout.
func WithHeads(numHeads, headDim int) Option {
	return func(r *Retriever) error {
		if numHeads <= 0 || headDim <= 0 {
			return fmt.Errorf("%w: %d heads of %d", ErrInvalidHeads, numHeads, headDim)
		}
		r.numHeads = numHeads
		r.headDim = headDim
		return nil
	}
}

// NewRetriever creates a retriever using the given gate weights.
func NewRetriever(weights *Weights, opts ...Option) (*Retriever, error) {
	if weights == nil || weights.Gate == nil {
		return nil, ErrWeightsRequired
	}
	_, hidden := weights.Dims()
	if len(weights.Bias) != hidden {
		return nil, fmt.Errorf("%w: bias length %d, gate width %d", ErrInvalidWeights, len(weights.Bias), hidden)
	}

	r := &Retriever{
		weights: weights,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.numHeads > 0 && r.numHeads*r.headDim != hidden {
		return nil, fmt.Errorf("%w: %d x %d != %d", ErrInvalidHeads, r.numHeads, r.headDim, hidden)
	}
	r.logger = r.logger.With("component", "retrieval")

	return r, nil
}

// Gate computes sigmoid(q · W_gate + bias).
func (r *Retriever) Gate(query []float64) ([]float64, error) {
	dim, hidden := r.weights.Dims()
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query %d, gate input %d", core.ErrDimensionMismatch, len(query), dim)
	}

	logits := make([]float64, hidden)
	lv := mat.NewVecDense(hidden, logits)
	lv.MulVec(r.weights.Gate.T(), mat.NewVecDense(dim, append([]float64(nil), query...)))

	gate := make([]float64, hidden)
	for i := range logits {
		gate[i] = vecmath.Sigmoid(logits[i] + r.weights.Bias[i])
	}
	return gate, nil
}

// ComputeGatedAttention runs scaled dot-product attention of query over keys
// (keys double as values) and gates the aggregate elementwise. When the gate
// and the aggregate differ in length the gate is truncated or tiled.
func (r *Retriever) ComputeGatedAttention(query []float64, keys [][]float64) (core.GateOutput, error) {
	if len(keys) == 0 {
		return core.GateOutput{}, ErrKeysRequired
	}
	d := len(query)
	for i, k := range keys {
		if len(k) != d {
			return core.GateOutput{}, fmt.Errorf("%w: key %d has %d, query %d", core.ErrDimensionMismatch, i, len(k), d)
		}
	}

	scale := 1 / math.Sqrt(float64(d))
	scores := make([]float64, len(keys))
	for i, k := range keys {
		scores[i] = vecmath.Dot(query, k) * scale
	}
	weights := vecmath.Softmax(scores)

	sdpa := make([]float64, d)
	for i, k := range keys {
		for j := range sdpa {
			sdpa[j] += weights[i] * k[j]
		}
	}

	gate, err := r.Gate(query)
	if err != nil {
		return core.GateOutput{}, err
	}
	aligned := vecmath.Align(gate, len(sdpa))
	for j := range sdpa {
		sdpa[j] *= aligned[j]
	}

	return core.GateOutput{Gate: gate, Output: sdpa}, nil
}

// Retrieve ranks the candidates that carry an embedding and returns at most
// topK of them, best first. Scores are rawDot(q, k) * mean(gate). Ties keep
// candidate order. Candidates without an embedding are skipped; a query
// without an embedding yields an empty result.
func (r *Retriever) Retrieve(query *core.Query, candidates []*core.ContextBlock, topK int) ([]core.RankedContext, error) {
	if query == nil || len(query.Vector) == 0 || topK <= 0 {
		return []core.RankedContext{}, nil
	}

	eligible := make([]*core.ContextBlock, 0, len(candidates))
	keys := make([][]float64, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || len(c.Vector) == 0 {
			continue
		}
		if err := core.CheckDimensions(c.Vector, query.Vector); err != nil {
			return nil, fmt.Errorf("context %d: %w", c.Id, err)
		}
		eligible = append(eligible, c)
		keys = append(keys, c.Vector.Float64())
	}
	if len(eligible) == 0 {
		return []core.RankedContext{}, nil
	}

	q := query.Vector.Float64()
	out, err := r.ComputeGatedAttention(q, keys)
	if err != nil {
		return nil, err
	}
	meanGate := vecmath.Mean(out.Gate)

	ranked := make([]core.RankedContext, len(eligible))
	for i, c := range eligible {
		ranked[i] = core.RankedContext{
			Context: c,
			Score:   vecmath.Dot(q, keys[i]) * meanGate,
		}
	}
	slices.SortStableFunc(ranked, func(a, b core.RankedContext) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	r.logger.Debug("gated retrieval",
		"candidates", len(candidates),
		"eligible", len(eligible),
		"meanGate", meanGate,
		"returned", len(ranked))

	return ranked, nil
}
