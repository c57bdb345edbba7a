package mock

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync/atomic"
)

// DefaultDimension is the dimension of vectors produced by MockEmbedder.
const DefaultDimension = 384

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
//
// The default behavior is a bag-of-words hashing encoder: every word that is
// not a stop word maps to a fixed pseudo-random direction, and a text's
// vector is the normalized sum of its words' directions. Texts that share
// words therefore have a positive cosine similarity.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	dim       int
	callCount atomic.Int64
}

// NewMockEmbedder creates a mock embedder producing DefaultDimension vectors.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return NewMockEmbedderWithDim(DefaultDimension)
}

// NewMockEmbedderWithDim creates a mock embedder producing vectors of the given dimension.
func NewMockEmbedderWithDim(dim int) *MockEmbedder {
	if dim < 1 {
		dim = DefaultDimension
	}
	return &MockEmbedder{dim: dim}
}

// WithEmbedTextFunc sets custom behavior for EmbedText.
func (m *MockEmbedder) WithEmbedTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) *MockEmbedder {
	m.EmbedTextFunc = fn
	return m
}

// WithEmbedTextsFunc sets custom behavior for EmbedTexts.
func (m *MockEmbedder) WithEmbedTextsFunc(fn func(ctx context.Context, texts []string) ([][]float32, error)) *MockEmbedder {
	m.EmbedTextsFunc = fn
	return m
}

// EmbedText generates a deterministic embedding for the text.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}

	return hashVector(text, m.dim), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = hashVector(text, m.dim)
	}
	return embeddings, nil
}

// Dimension returns the dimension of generated vectors.
func (m *MockEmbedder) Dimension() int {
	return m.dim
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and any injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// hashVector sums one pseudo-random direction per word and normalizes the
// result. Text without usable words hashes as a single token.
func hashVector(text string, dim int) []float32 {
	tokens := tokenizeAndFilter(text)
	if len(tokens) == 0 {
		tokens = []string{text}
	}

	sum := make([]float64, dim)
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		seed := h.Sum64()
		r := rand.New(rand.NewPCG(seed, seed>>1|1))
		for i := range sum {
			sum[i] += r.NormFloat64()
		}
	}

	var sq float64
	for _, v := range sum {
		sq += v * v
	}
	norm := math.Sqrt(sq)

	vector := make([]float32, dim)
	for i, v := range sum {
		vector[i] = float32(v / norm)
	}
	return vector
}
