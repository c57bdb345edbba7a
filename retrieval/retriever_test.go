package retrieval

import (
	"math/rand/v2"
	"testing"

	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetriever(t *testing.T, dim, hidden int) *Retriever {
	t.Helper()
	w, err := SeededWeights(dim, hidden, DefaultGateInit(42))
	require.NoError(t, err)
	r, err := NewRetriever(w)
	require.NoError(t, err)
	return r
}

func randomEmbedding(r *rand.Rand, dim int) core.Embedding {
	v := make(core.Embedding, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func TestNewRetriever(t *testing.T) {
	w, err := SeededWeights(16, 512, DefaultGateInit(1))
	require.NoError(t, err)

	_, err = NewRetriever(nil)
	assert.ErrorIs(t, err, ErrWeightsRequired)

	_, err = NewRetriever(w, WithHeads(DefaultNumHeads, DefaultHeadDim))
	assert.NoError(t, err)

	_, err = NewRetriever(w, WithHeads(4, 64))
	assert.ErrorIs(t, err, ErrInvalidHeads)

	_, err = NewRetriever(w, WithHeads(0, 64))
	assert.ErrorIs(t, err, ErrInvalidHeads)

	_, err = NewRetriever(&Weights{Gate: w.Gate, Bias: []float64{1}})
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestRetriever_GateBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for _, init := range []GateInit{
		{Seed: 1, Scale: 0.02, Bias: -2},
		{Seed: 2, Scale: 100, Bias: 0},
		{Seed: 3, Scale: 1000, Bias: 500},
		{Seed: 4, Scale: 1000, Bias: -500},
	} {
		w, err := SeededWeights(32, 24, init)
		require.NoError(t, err)
		r, err := NewRetriever(w)
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			q := randomEmbedding(rng, 32).Float64()
			for j := range q {
				q[j] *= 1e3
			}
			gate, err := r.Gate(q)
			require.NoError(t, err)
			require.Len(t, gate, 24)
			for _, g := range gate {
				assert.Greater(t, g, 0.0)
				assert.Less(t, g, 1.0)
			}
		}
	}
}

func TestRetriever_GateDimensionMismatch(t *testing.T) {
	r := newTestRetriever(t, 8, 4)
	_, err := r.Gate(make([]float64, 7))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestRetriever_ComputeGatedAttention(t *testing.T) {
	t.Run("single key aggregates to the key", func(t *testing.T) {
		r := newTestRetriever(t, 4, 4)
		key := []float64{0.5, -1, 2, 0}
		out, err := r.ComputeGatedAttention([]float64{1, 0, 0, 0}, [][]float64{key})
		require.NoError(t, err)

		for j := range key {
			assert.InDelta(t, key[j]*out.Gate[j], out.Output[j], 1e-6)
		}
	})

	t.Run("narrow gate is tiled", func(t *testing.T) {
		r := newTestRetriever(t, 6, 2)
		key := []float64{1, 1, 1, 1, 1, 1}
		out, err := r.ComputeGatedAttention(key, [][]float64{key})
		require.NoError(t, err)
		require.Len(t, out.Gate, 2)
		require.Len(t, out.Output, 6)
		assert.InDelta(t, out.Output[0], out.Output[2], 1e-12)
		assert.InDelta(t, out.Output[1], out.Output[5], 1e-12)
	})

	t.Run("wide gate is truncated", func(t *testing.T) {
		r := newTestRetriever(t, 3, 10)
		out, err := r.ComputeGatedAttention([]float64{1, 0, 0}, [][]float64{{1, 2, 3}})
		require.NoError(t, err)
		assert.Len(t, out.Gate, 10)
		assert.Len(t, out.Output, 3)
	})

	t.Run("empty keys", func(t *testing.T) {
		r := newTestRetriever(t, 3, 3)
		_, err := r.ComputeGatedAttention([]float64{1, 0, 0}, nil)
		assert.ErrorIs(t, err, ErrKeysRequired)
	})

	t.Run("mismatched key", func(t *testing.T) {
		r := newTestRetriever(t, 3, 3)
		_, err := r.ComputeGatedAttention([]float64{1, 0, 0}, [][]float64{{1, 0}})
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})
}

func TestRetriever_RetrieveCardinality(t *testing.T) {
	const dim = 16
	r := newTestRetriever(t, dim, 32)
	rng := rand.New(rand.NewPCG(5, 6))

	query := &core.Query{Id: "q", Text: "q", Vector: randomEmbedding(rng, dim)}
	candidates := make([]*core.ContextBlock, 10)
	for i := range candidates {
		candidates[i] = &core.ContextBlock{Id: core.ID(i + 1), Contents: "c", Vector: randomEmbedding(rng, dim)}
	}

	ranked, err := r.Retrieve(query, candidates, 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	seen := map[core.ID]bool{}
	for i, rc := range ranked {
		assert.False(t, seen[rc.Context.Id], "duplicate %d", rc.Context.Id)
		seen[rc.Context.Id] = true
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Score, rc.Score)
		}
	}

	all, err := r.Retrieve(query, candidates, 50)
	require.NoError(t, err)
	assert.Len(t, all, 10)
	assert.Equal(t, ranked[0].Context.Id, all[0].Context.Id)
}

func TestRetriever_RetrieveScores(t *testing.T) {
	const dim = 8
	r := newTestRetriever(t, dim, 8)
	rng := rand.New(rand.NewPCG(9, 9))

	query := &core.Query{Id: "q", Text: "q", Vector: randomEmbedding(rng, dim)}
	candidates := []*core.ContextBlock{
		{Id: 1, Contents: "a", Vector: randomEmbedding(rng, dim)},
		{Id: 2, Contents: "b", Vector: randomEmbedding(rng, dim)},
	}

	gate, err := r.Gate(query.Vector.Float64())
	require.NoError(t, err)
	meanGate := vecmath.Mean(gate)

	ranked, err := r.Retrieve(query, candidates, 2)
	require.NoError(t, err)
	for _, rc := range ranked {
		want := vecmath.Dot(query.Vector.Float64(), rc.Context.Vector.Float64()) * meanGate
		assert.InDelta(t, want, rc.Score, 1e-9)
	}
}

func TestRetriever_RetrieveDoesNotMutate(t *testing.T) {
	r := newTestRetriever(t, 2, 2)
	query := &core.Query{Vector: core.Embedding{1, 0}}
	c := &core.ContextBlock{Id: 1, Contents: "a", Vector: core.Embedding{1, 0}}
	before := *c

	ranked, err := r.Retrieve(query, []*core.ContextBlock{c}, 1)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	assert.Nil(t, c.Scores)
	assert.Equal(t, before, *c)
	assert.Same(t, c, ranked[0].Context)
}

func TestRetriever_RetrieveStableTies(t *testing.T) {
	r := newTestRetriever(t, 2, 2)
	query := &core.Query{Vector: core.Embedding{1, 0}}
	candidates := []*core.ContextBlock{
		{Id: 1, Vector: core.Embedding{0, 1}},
		{Id: 2, Vector: core.Embedding{0.5, 0.5}},
		{Id: 3, Vector: core.Embedding{0.5, 0.5}},
		{Id: 4, Vector: core.Embedding{0.5, 0.5}},
	}

	ranked, err := r.Retrieve(query, candidates, 4)
	require.NoError(t, err)
	ids := []core.ID{}
	for _, rc := range ranked {
		ids = append(ids, rc.Context.Id)
	}
	assert.Equal(t, []core.ID{2, 3, 4, 1}, ids)
}

func TestRetriever_RetrieveEdgeCases(t *testing.T) {
	r := newTestRetriever(t, 2, 2)
	withVec := &core.ContextBlock{Id: 1, Vector: core.Embedding{1, 0}}
	noVec := &core.ContextBlock{Id: 2, Contents: "no vector"}

	tests := []struct {
		name       string
		query      *core.Query
		candidates []*core.ContextBlock
		topK       int
		wantLen    int
	}{
		{"no candidates", &core.Query{Vector: core.Embedding{1, 0}}, nil, 5, 0},
		{"query without embedding", &core.Query{Text: "x"}, []*core.ContextBlock{withVec}, 5, 0},
		{"candidates without embeddings skipped", &core.Query{Vector: core.Embedding{1, 0}}, []*core.ContextBlock{noVec, withVec, nil}, 5, 1},
		{"only unembedded candidates", &core.Query{Vector: core.Embedding{1, 0}}, []*core.ContextBlock{noVec}, 5, 0},
		{"zero topK", &core.Query{Vector: core.Embedding{1, 0}}, []*core.ContextBlock{withVec}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := r.Retrieve(tt.query, tt.candidates, tt.topK)
			require.NoError(t, err)
			assert.NotNil(t, ranked)
			assert.Len(t, ranked, tt.wantLen)
		})
	}
}

func TestRetriever_RetrieveDimensionMismatch(t *testing.T) {
	r := newTestRetriever(t, 2, 2)
	query := &core.Query{Vector: core.Embedding{1, 0}}
	bad := &core.ContextBlock{Id: 1, Vector: core.Embedding{1, 0, 0}}

	_, err := r.Retrieve(query, []*core.ContextBlock{bad}, 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}
