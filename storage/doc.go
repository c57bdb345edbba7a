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


// Package storage provides the storage abstraction layer for ysrn.
//
// This package defines repository interfaces that decouple storage
// implementation from ranking logic. The ranking packages only need a
// CandidateSource; ingestion and reembedding use the full ContextRepository.
//
// # Architecture
//
//   - Repository: transaction support and lifecycle
//   - CandidateSource: cosine similarity search producing candidate pools
//   - ContextRepository: CRUD and paging over context blocks
//   - CheckpointRepository: named binary checkpoints (gate weights)
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	contexts, checkpoints, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	defer contexts.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
