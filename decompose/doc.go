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


// Package decompose splits a candidate embedding Y into three additive
// parts relative to a query q:
//
//	Y = R + S + N
//
// R (relevant) is the projection of Y onto the query direction, optionally
// refined by a learned square projection. The residual Y - R is split by a
// singular value decomposition: trailing spectral components whose
// cumulative energy exceeds 1 - noiseThreshold form N (noise), the rest
// forms S (superfluous).
//
// With the default block size of 1 the residual is a single column, so its
// spectrum has exactly one non-trivial singular value: a non-zero residual
// is attributed entirely to noise whenever noiseThreshold > 0. A larger
// block size reshapes the residual into a (d/blockSize x blockSize) matrix
// and applies the same cumulative-energy rule across its spectrum.
//
// Degenerate residuals (near-zero norm, non-finite values, or a failed
// factorization) take an explicit fallback branch that treats the whole
// residual as one component whose singular value is its norm.
package decompose
