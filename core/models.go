package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored context blocks.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Embedding is a fixed-length vector representing text in a semantic space.
// Embeddings are treated as immutable once constructed; use Clone before
// modifying one.
type Embedding []float32

// Dim returns the dimensionality of the embedding.
func (e Embedding) Dim() int {
	return len(e)
}

// Clone returns an independent copy of the embedding.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Equal reports whether two embeddings are structurally equal.
func (e Embedding) Equal(other Embedding) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if e[i] != other[i] {
			return false
		}
	}
	return true
}

// Float64 widens the embedding for numeric work.
func (e Embedding) Float64() []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}

// Query is a single retrieval request. It is created once per request and
// is read-only afterwards.
type Query struct {
	Id          string
	Text        string
	Vector      Embedding
	Constraints []string          // Opaque labels, not interpreted by ranking
	Metadata    map[string]string // Optional request metadata
	CreatedAt   time.Time
}

// Scores holds the three classification scores of a context block.
type Scores struct {
	Relevance   float64
	Superfluous float64
	Noise       float64
}

// ContextBlock is a unit of candidate text.
// Scores is nil until the block has been classified against a query; the
// three scores are always set together.
type ContextBlock struct {
	Id         ID
	Contents   string
	Vector     Embedding         // Embedding vector (populated by the embedder)
	Metadata   map[string]string // Optional metadata (e.g., "source", "model")
	Scores     *Scores           // Classification scores (nil when unclassified)
	InsertedAt time.Time         // When the block was inserted into the database
	UpdatedAt  time.Time         // When the block was last updated
}

// IsClassified reports whether the block carries classification scores.
func (c *ContextBlock) IsClassified() bool {
	return c.Scores != nil
}

// WithScores returns a copy of the block carrying the given scores.
// The receiver is left untouched.
func (c *ContextBlock) WithScores(s Scores) ContextBlock {
	out := *c
	out.Scores = &s
	return out
}

// RankedContext pairs a candidate with the provisional score assigned by
// gated retrieval. The candidate itself is never modified.
type RankedContext struct {
	Context *ContextBlock
	Score   float64
}

// Decomposition is the result of splitting a candidate embedding Y into
// relevant, superfluous and noise parts (Y = R + S + N) relative to a query.
type Decomposition struct {
	Y []float64 // Normalized candidate embedding
	R []float64 // Relevant signal
	S []float64 // Superfluous content
	N []float64 // Noise

	RelevanceRatio   float64
	SuperfluousRatio float64
	NoiseRatio       float64
	SignalQuality    float64 // |R| / (|S| + |N|)
	Confidence       float64 // |cos(Y, q)|

	// Relevant is set when RelevanceRatio meets the engine's relevance threshold.
	Relevant bool

	RComponents int
	SComponents int
	NComponents int
}

// Scores returns the classification scores derived from the decomposition.
func (d *Decomposition) Scores() Scores {
	return Scores{
		Relevance:   d.RelevanceRatio,
		Superfluous: d.SuperfluousRatio,
		Noise:       d.NoiseRatio,
	}
}

// GateOutput holds a sigmoid gate and the attention aggregate it gates.
type GateOutput struct {
	Gate   []float64 // Values strictly inside (0, 1)
	Output []float64 // Gated attention aggregate
}

// QueryResult is the outcome of one retrieval-classification run.
type QueryResult struct {
	QueryId         string
	Contexts        []ContextBlock // Classified blocks, best first
	TotalCandidates int            // Number of candidates considered
	MeanRelevance   float64
	MeanNoise       float64
	Elapsed         time.Duration
}

// TopContext returns the best ranked block, or nil when the result is empty.
func (r *QueryResult) TopContext() *ContextBlock {
	if len(r.Contexts) == 0 {
		return nil
	}
	return &r.Contexts[0]
}

// Checkpoint is a named binary blob persisted alongside the contexts,
// e.g. serialized gate weights.
type Checkpoint struct {
	Name      string
	Data      []byte
	UpdatedAt time.Time
}
