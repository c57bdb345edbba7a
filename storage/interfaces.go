package storage

import (
	"context"

	"github.com/poiesic/ysrn/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// CandidateSource produces the candidate pool for a query vector.
type CandidateSource interface {
	// SearchSimilar returns up to topK stored contexts ordered by cosine
	// similarity to vector, highest first. Contexts without an embedding
	// are skipped.
	SearchSimilar(ctx context.Context, vector []float32, topK int) ([]*core.ContextBlock, error)
}

// ContextRepository provides operations for managing context blocks.
type ContextRepository interface {
	Repository
	CandidateSource

	// AddContexts stores one or more context blocks.
	// Blocks with ID=0 get a content-derived ID (core.IDFromContent).
	// Sets InsertedAt and UpdatedAt.
	// Returns the blocks with IDs and timestamps populated.
	AddContexts(ctx context.Context, blocks ...*core.ContextBlock) ([]*core.ContextBlock, error)

	// UpdateContexts updates existing context blocks.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any block doesn't exist.
	UpdateContexts(ctx context.Context, blocks ...*core.ContextBlock) ([]*core.ContextBlock, error)

	// DeleteContexts removes context blocks by their IDs.
	// Returns ErrNotFound if any block doesn't exist.
	DeleteContexts(ctx context.Context, ids ...core.ID) error

	// GetContext retrieves a single context block by ID.
	// Returns ErrNotFound if the block doesn't exist.
	GetContext(ctx context.Context, id core.ID) (*core.ContextBlock, error)

	// GetContexts retrieves multiple context blocks by their IDs.
	// Returns only the blocks that exist (no error for missing blocks).
	GetContexts(ctx context.Context, ids ...core.ID) ([]*core.ContextBlock, error)

	// ListContexts pages through stored blocks in ascending ID order,
	// returning up to limit blocks with an ID greater than after.
	// Pass 0 to start from the beginning.
	ListContexts(ctx context.Context, after core.ID, limit int) ([]*core.ContextBlock, error)

	// CountContexts returns the number of stored blocks.
	CountContexts(ctx context.Context) (int, error)
}

// CheckpointRepository stores named binary checkpoints such as gate weights.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint under its name, replacing any
	// previous one. Sets UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the named checkpoint.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the named checkpoint.
	// Returns ErrNotFound if it doesn't exist.
	DeleteCheckpoint(ctx context.Context, name string) error

	// ListCheckpoints returns all checkpoints ordered by name.
	ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error)
}
