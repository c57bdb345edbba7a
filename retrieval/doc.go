// Package retrieval implements gated attention re-ranking of candidate
// context blocks.
//
// A Retriever stacks the candidate embeddings into a key matrix K (reused as
// the value matrix), computes scaled dot-product attention for the query and
// a query-only sigmoid gate
//
//	gate = sigmoid(q · W_gate + bias)
//
// The gate does not vary per candidate. Each candidate's final score is its
// raw dot product with the query scaled by the mean of the gate, so the gate
// acts as a global dampening factor. Gate weights are always supplied by the
// caller, either loaded from a checkpoint or built from an explicit seed
// with SeededWeights.
package retrieval
