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


package retrieval

import "errors"

var (
	// ErrWeightsRequired is returned when a retriever is created without gate weights.
	ErrWeightsRequired = errors.New("gate weights required")

	// ErrInvalidWeights is returned when gate weights have inconsistent shapes.
	ErrInvalidWeights = errors.New("invalid gate weights")

	// ErrInvalidHeads is returned when the head configuration does not match the gate width.
	ErrInvalidHeads = errors.New("head configuration does not match gate width")

	// ErrKeysRequired is returned when attention is computed over an empty key set.
	ErrKeysRequired = errors.New("at least one key required")
)
