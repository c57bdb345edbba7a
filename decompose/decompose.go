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


package decompose

import (
	"fmt"
	"math"

	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/vecmath"
	"gonum.org/v1/gonum/mat"
)

// Default thresholds.
const (
	DefaultNoiseThreshold     = 0.1
	DefaultRelevanceThreshold = 0.3
)

// Params controls a single decomposition.
type Params struct {
	// NoiseThreshold is the share of residual energy attributed to noise.
	NoiseThreshold float64
	// RelevanceThreshold sets Decomposition.Relevant.
	RelevanceThreshold float64
	// BlockSize reshapes the residual into rows of this width before the
	// spectral split. 0 and 1 both mean a single column.
	BlockSize int
	// Refinement, when set, is applied to the query projection to obtain R.
	// It must be d x d.
	Refinement *mat.Dense
}

// DefaultParams returns the default decomposition parameters.
func DefaultParams() Params {
	return Params{
		NoiseThreshold:     DefaultNoiseThreshold,
		RelevanceThreshold: DefaultRelevanceThreshold,
		BlockSize:          1,
	}
}

// Decompose splits the candidate embedding y relative to the query q.
// Neither input needs to be normalized. Both must be non-empty and of equal
// length.
func Decompose(y, q []float64, p Params) (*core.Decomposition, error) {
	d, _, err := decompose(y, q, p)
	return d, err
}

func decompose(y, q []float64, p Params) (*core.Decomposition, bool, error) {
	if len(y) == 0 || len(q) == 0 {
		return nil, false, core.ErrEmbeddingRequired
	}
	if len(y) != len(q) {
		return nil, false, fmt.Errorf("%w: candidate %d, query %d", core.ErrDimensionMismatch, len(y), len(q))
	}
	if !vecmath.IsFinite(y) || !vecmath.IsFinite(q) {
		return nil, false, ErrNonFinite
	}

	yn := vecmath.Normalize(y)
	qn := vecmath.Normalize(q)

	c := vecmath.Dot(yn, qn)
	rInit := vecmath.Scale(c, qn)
	residual := vecmath.Sub(yn, rInit)

	split := spectralSplit(residual, p.NoiseThreshold, p.BlockSize)

	r := rInit
	if p.Refinement != nil {
		refined, err := refine(p.Refinement, rInit)
		if err != nil {
			return nil, split.degenerate, err
		}
		r = refined
	}

	rNorm := vecmath.Norm(r)
	sNorm := vecmath.Norm(split.s)
	nNorm := vecmath.Norm(split.n)
	total := rNorm + sNorm + nNorm

	out := &core.Decomposition{
		Y:                yn,
		R:                r,
		S:                split.s,
		N:                split.n,
		RelevanceRatio:   vecmath.SafeDiv(rNorm, total),
		SuperfluousRatio: vecmath.SafeDiv(sNorm, total),
		NoiseRatio:       vecmath.SafeDiv(nNorm, total),
		SignalQuality:    vecmath.SafeDiv(rNorm, sNorm+nNorm),
		Confidence:       vecmath.Clamp01(math.Abs(c)),
		RComponents:      1,
		SComponents:      split.sComponents,
		NComponents:      split.nComponents,
	}
	out.Relevant = out.RelevanceRatio >= p.RelevanceThreshold

	return out, split.degenerate, nil
}

func refine(w *mat.Dense, rInit []float64) ([]float64, error) {
	rows, cols := w.Dims()
	if rows != cols {
		return nil, ErrInvalidRefinement
	}
	if cols != len(rInit) {
		return nil, fmt.Errorf("%w: refinement %dx%d, embedding %d", core.ErrDimensionMismatch, rows, cols, len(rInit))
	}
	out := make([]float64, rows)
	dst := mat.NewVecDense(rows, out)
	dst.MulVec(w, mat.NewVecDense(len(rInit), append([]float64(nil), rInit...)))
	return out, nil
}

type splitResult struct {
	s, n        []float64
	sComponents int
	nComponents int
	degenerate  bool
}

// spectralSplit partitions residual into superfluous and noise parts.
func spectralSplit(residual []float64, noiseThreshold float64, blockSize int) splitResult {
	rows, cols := len(residual), 1
	if blockSize > 1 && len(residual)%blockSize == 0 {
		rows, cols = len(residual)/blockSize, blockSize
	}

	norm := vecmath.Norm(residual)
	if norm <= vecmath.Epsilon {
		return degenerateSplit(residual, norm, noiseThreshold)
	}

	var svd mat.SVD
	a := mat.NewDense(rows, cols, append([]float64(nil), residual...))
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return degenerateSplit(residual, norm, noiseThreshold)
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	noise := noiseIndices(values, noiseThreshold)
	nm := mat.NewDense(rows, cols, nil)
	for _, i := range noise {
		var outer mat.Dense
		outer.Outer(values[i], u.ColView(i), v.ColView(i))
		nm.Add(nm, &outer)
	}

	n := make([]float64, 0, len(residual))
	for i := 0; i < rows; i++ {
		n = append(n, nm.RawRowView(i)...)
	}

	return splitResult{
		s:           vecmath.Sub(residual, n),
		n:           n,
		sComponents: countSignificant(values, noise),
		nComponents: len(noise),
	}
}

// degenerateSplit treats the whole residual as one component with singular
// value equal to its norm.
func degenerateSplit(residual []float64, norm, noiseThreshold float64) splitResult {
	out := splitResult{
		s:          make([]float64, len(residual)),
		n:          make([]float64, len(residual)),
		degenerate: true,
	}
	if len(noiseIndices([]float64{norm}, noiseThreshold)) > 0 {
		copy(out.n, residual)
		out.nComponents = 1
	} else {
		copy(out.s, residual)
		if norm > vecmath.Epsilon {
			out.sComponents = 1
		}
	}
	return out
}

// noiseIndices returns the indices of descending singular values whose
// cumulative normalized energy exceeds 1 - threshold.
func noiseIndices(values []float64, threshold float64) []int {
	var total float64
	for _, s := range values {
		total += s * s
	}
	var idx []int
	var cum float64
	for i, s := range values {
		cum += s * s
		if vecmath.SafeDiv(cum, total) > 1-threshold {
			idx = append(idx, i)
		}
	}
	return idx
}

func countSignificant(values []float64, noise []int) int {
	isNoise := make(map[int]bool, len(noise))
	for _, i := range noise {
		isNoise[i] = true
	}
	count := 0
	for i, s := range values {
		if !isNoise[i] && s > vecmath.Epsilon {
			count++
		}
	}
	return count
}
