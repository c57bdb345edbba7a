package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when a context repository is not provided.
	ErrRepositoryRequired = errors.New("context repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")
)
