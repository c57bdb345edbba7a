// Package vecmath provides the small, stateless vector helpers shared by the
// decomposition engine and the gated retriever: epsilon-guarded
// normalization and division, a numerically stable softmax and a clipped
// sigmoid.
//
// Every division is guarded by the additive constant Epsilon, so no helper
// fails or returns NaN on zero-valued input.
package vecmath
