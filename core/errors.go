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

import "errors"

// Domain validation errors
var (
	// ErrInvalidContext indicates a ContextBlock failed validation.
	ErrInvalidContext = errors.New("invalid context block")

	// ErrInvalidQuery indicates a Query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmptyContent indicates the Contents or Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmbeddingRequired indicates an operation needed an embedding that was absent.
	ErrEmbeddingRequired = errors.New("embedding required")

	// ErrDimensionMismatch indicates two embeddings have different lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidScores indicates a classification score is out of range.
	ErrInvalidScores = errors.New("scores must be finite and non-negative")
)
