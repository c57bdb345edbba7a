// Package pipeline chains gated retrieval and decomposition into a single
// ranking pass.
//
// Given a query and a pool of candidates produced by a nearest-neighbor
// search, a Pipeline:
//   - narrows the pool to topK with the gated retriever
//   - classifies each survivor with the decomposition engine
//   - sorts the classified blocks by relevance ratio, best first
//   - reports mean relevance and mean noise over the final list
//
// The retriever's provisional scores only decide which candidates survive;
// the surfaced score is the decomposition relevance ratio. Candidates are
// never modified: classified blocks are returned as copies.
package pipeline
