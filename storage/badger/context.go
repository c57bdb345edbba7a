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


package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/storage"
)

// ContextRepository implements storage.ContextRepository for BadgerDB.
type ContextRepository struct {
	backend *Backend
}

var _ storage.ContextRepository = (*ContextRepository)(nil)

// NewContextRepository creates a new ContextRepository.
func NewContextRepository(backend *Backend) (*ContextRepository, error) {
	if backend == nil {
		return nil, storage.ErrStorageClosed
	}
	return &ContextRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ContextRepository holds none of its own; the
// backend is closed separately.
func (r *ContextRepository) Close() error {
	return nil
}

// SearchSimilar delegates to the backend.
func (r *ContextRepository) SearchSimilar(ctx context.Context, vector []float32, topK int) ([]*core.ContextBlock, error) {
	return r.backend.SearchSimilar(ctx, vector, topK)
}

// WithTransaction delegates to the backend.
func (r *ContextRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddContexts stores one or more context blocks.
// Re-adding content that is already stored replaces the block but keeps its
// original InsertedAt.
func (r *ContextRepository) AddContexts(ctx context.Context, blocks ...*core.ContextBlock) ([]*core.ContextBlock, error) {
	for _, block := range blocks {
		if err := core.ValidateContextBlock(block); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, block := range blocks {
			// Use content-based ID if not set
			if block.Id == 0 {
				block.Id = core.IDFromContent(block.Contents)
			}

			key := makeContextKey(block.Id)
			existing, err := readContextBlock(tx, key)
			if err != nil {
				return err
			}

			if existing != nil {
				block.InsertedAt = existing.InsertedAt
			} else {
				block.InsertedAt = now
			}
			block.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalContextBlock(block)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

// UpdateContexts updates existing context blocks.
func (r *ContextRepository) UpdateContexts(ctx context.Context, blocks ...*core.ContextBlock) ([]*core.ContextBlock, error) {
	for _, block := range blocks {
		if err := core.ValidateContextBlock(block); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, block := range blocks {
			key := makeContextKey(block.Id)

			old, err := readContextBlock(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			block.InsertedAt = old.InsertedAt
			block.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalContextBlock(block)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

// DeleteContexts removes context blocks by their IDs.
func (r *ContextRepository) DeleteContexts(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeContextKey(id)

			_, err := tx.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			if err != nil {
				return err
			}

			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetContext retrieves a single context block by ID.
func (r *ContextRepository) GetContext(ctx context.Context, id core.ID) (*core.ContextBlock, error) {
	var result *core.ContextBlock
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readContextBlock(tx, makeContextKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetContexts retrieves multiple context blocks by their IDs.
func (r *ContextRepository) GetContexts(ctx context.Context, ids ...core.ID) ([]*core.ContextBlock, error) {
	var result []*core.ContextBlock
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			block, err := readContextBlock(tx, makeContextKey(id))
			if err != nil {
				return err
			}
			if block != nil {
				result = append(result, block)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListContexts pages through stored blocks in ascending ID order.
func (r *ContextRepository) ListContexts(ctx context.Context, after core.ID, limit int) ([]*core.ContextBlock, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.ContextBlock
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(contextBlockPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeContextKey(after)); iter.Valid() && len(results) < limit; iter.Next() {
			item := iter.Item()
			id, ok := contextIDFromKey(item.Key())
			if !ok || id <= after {
				continue
			}

			var block *core.ContextBlock
			err := item.Value(func(val []byte) error {
				var err error
				block, err = storage.UnmarshalContextBlock(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, block)
		}
		return nil
	}, false)

	return results, err
}

// CountContexts returns the number of stored blocks.
func (r *ContextRepository) CountContexts(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(contextBlockPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readContextBlock reads a context block from the transaction.
// Returns nil, nil when the key is absent.
func readContextBlock(tx *badger.Txn, key []byte) (*core.ContextBlock, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var block *core.ContextBlock
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		block, unmarshalErr = storage.UnmarshalContextBlock(val)
		return unmarshalErr
	})
	return block, err
}
