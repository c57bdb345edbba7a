package search

import (
	"github.com/poiesic/ysrn/core"
	"github.com/poiesic/ysrn/pipeline"
)

// SearchMonitor provides hooks to observe a search.
// Start is called once with the embedded query, AfterCandidateSearch once
// the candidate pool is fetched, and the remaining pipeline hooks as ranking
// proceeds.
type SearchMonitor interface {
	pipeline.Monitor
	AfterCandidateSearch(candidates []*core.ContextBlock)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.Query)                          {}
func (n *noopMonitor) AfterCandidateSearch(_ []*core.ContextBlock) {}
func (n *noopMonitor) AfterRetrieval(_ []core.RankedContext)        {}
func (n *noopMonitor) AfterClassification(_ []core.ContextBlock)    {}
func (n *noopMonitor) Finish(_ *core.QueryResult)                   {}

// pipelineStages forwards pipeline hooks except Start, which the searcher
// has already reported.
type pipelineStages struct {
	SearchMonitor
}

func (pipelineStages) Start(_ *core.Query) {}
