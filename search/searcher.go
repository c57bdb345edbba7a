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


package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ysrn/ai"
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/pipeline"
	"github.com/poiesic/ysrn/storage"
)

// DefaultCandidatePool is the number of stored contexts fetched by cosine
// similarity before gated retrieval.
const DefaultCandidatePool = 50

// Searcher runs text queries through candidate search and the ranking
// pipeline.
type Searcher struct {
	source        storage.CandidateSource
	embedder      ai.Embedder
	pipeline      *pipeline.Pipeline
	candidatePool int
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCandidatePool sets how many stored contexts are fetched per query.
// Default is 50.
func WithCandidatePool(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = DefaultCandidatePool
		}
		s.candidatePool = size
		return nil
	}
}

// NewSearcher creates a new Searcher.
func NewSearcher(source storage.CandidateSource, provider ai.AIProvider, p *pipeline.Pipeline, opts ...Option) (*Searcher, error) {
	if source == nil {
		return nil, ErrCandidateSourceRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if p == nil {
		return nil, ErrPipelineRequired
	}

	s := &Searcher{
		source:        source,
		embedder:      provider.Embedder(),
		pipeline:      p,
		candidatePool: DefaultCandidatePool,
		logger:        slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search ranks stored contexts against text. Constraints are opaque labels
// carried on the query. A topK below 1 uses the pipeline default.
func (s *Searcher) Search(ctx context.Context, text string, constraints []string, topK int) (*core.QueryResult, error) {
	return s.SearchWithMonitor(ctx, text, constraints, topK, nil)
}

// SearchWithMonitor ranks stored contexts against text with monitoring.
func (s *Searcher) SearchWithMonitor(ctx context.Context, text string, constraints []string, topK int, monitor SearchMonitor) (*core.QueryResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query := &core.Query{
		Id:          uuid.NewString(),
		Text:        text,
		Constraints: append([]string(nil), constraints...),
		CreatedAt:   time.Now().UTC(),
	}
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}

	start := time.Now()

	// 1. Embed the query
	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query.Id, "err", err)
		return nil, err
	}
	query.Vector = vector
	monitor.Start(query)

	// 2. Candidate pool by cosine similarity
	candidates, err := s.source.SearchSimilar(ctx, vector, s.candidatePool)
	if err != nil {
		s.logger.Error("error querying for similar contexts", "query", query.Id, "err", err)
		return nil, err
	}
	monitor.AfterCandidateSearch(candidates)

	// 3. Gated retrieval and classification
	result, err := s.pipeline.RunWithMonitor(ctx, query, candidates, topK, pipelineStages{monitor})
	if err != nil {
		return nil, err
	}
	result.Elapsed = time.Since(start)

	s.logger.Info("search complete",
		"query", query.Id,
		"candidates", len(candidates),
		"returned", len(result.Contexts),
		"meanRelevance", result.MeanRelevance,
		"elapsed", result.Elapsed)

	return result, nil
}
