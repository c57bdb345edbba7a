package pipeline

import (
	"github.com/poiesic/ysrn/core"
)

// Monitor provides hooks to observe a pipeline run.
// Implement this interface to track intermediate results.
type Monitor interface {
	Start(query *core.Query)
	AfterRetrieval(ranked []core.RankedContext)
	AfterClassification(contexts []core.ContextBlock)
	Finish(result *core.QueryResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.Query)                      {}
func (n *noopMonitor) AfterRetrieval(_ []core.RankedContext)    {}
func (n *noopMonitor) AfterClassification(_ []core.ContextBlock) {}
func (n *noopMonitor) Finish(_ *core.QueryResult)               {}
