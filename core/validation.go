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


package core

import (
	"fmt"
	"math"
)

// ValidateContextBlock validates a ContextBlock according to domain rules.
//
// Validation rules:
//   - Contents must not be empty
//   - Scores, when present, must be finite and non-negative
//
// NOT validated (populated by processors):
//   - Vector (can be empty until the embedder runs)
//   - ID (assigned from content on insert)
func ValidateContextBlock(block *ContextBlock) error {
	if block == nil {
		return fmt.Errorf("%w: block is nil", ErrInvalidContext)
	}

	if block.Contents == "" {
		return fmt.Errorf("%w: %w", ErrInvalidContext, ErrEmptyContent)
	}

	if block.Scores != nil {
		if err := ValidateScores(*block.Scores); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidContext, err)
		}
	}

	return nil
}

// ValidateQuery validates a Query according to domain rules.
// Text must not be empty. The vector is optional here; ranking operations
// report ErrEmbeddingRequired themselves.
func ValidateQuery(query *Query) error {
	if query == nil {
		return fmt.Errorf("%w: query is nil", ErrInvalidQuery)
	}

	if query.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyContent)
	}

	return nil
}

// ValidateScores checks that all three scores are finite and non-negative.
func ValidateScores(s Scores) error {
	for _, v := range []float64{s.Relevance, s.Superfluous, s.Noise} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: got %v", ErrInvalidScores, v)
		}
	}
	return nil
}

// CheckDimensions returns ErrDimensionMismatch when a and b differ in length.
func CheckDimensions(a, b Embedding) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}
