package pipeline

import "errors"

var (
	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrEngineRequired is returned when a decomposition engine is not provided.
	ErrEngineRequired = errors.New("decomposition engine required")

	// ErrQueryRequired is returned when Run is called without a query.
	ErrQueryRequired = errors.New("query required")
)
