package search

import "errors"

var (
	// ErrCandidateSourceRequired is returned when a candidate source is not provided.
	ErrCandidateSourceRequired = errors.New("candidate source required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrPipelineRequired is returned when a ranking pipeline is not provided.
	ErrPipelineRequired = errors.New("pipeline required")
)
