// Package progress projects a stream of step-status events (or a polled
// execution record) into a stable, monotonically-advancing view of a run.
package progress

import (
	"github.com/flowdeck/flowdeck/internal/flow"
)

// Projection is the derived view of a running execution: total and
// completed step counts, the label of the step in flight, and the overall
// status. Apply is idempotent per node and ignores events after a
// terminal status — duplicates and stragglers from the stream cannot
// move the view backwards.
type Projection struct {
	ExecutionID  string
	WorkflowName string
	TotalSteps   int
	CurrentLabel string
	Status       flow.ExecutionStatus

	nodeStatus map[string]flow.NodeExecutionStatus
}

// New returns an empty projection in the running state.
func New() *Projection {
	return &Projection{
		Status:     flow.ExecutionRunning,
		nodeStatus: make(map[string]flow.NodeExecutionStatus),
	}
}

// CompletedSteps returns the number of nodes projected as completed.
func (p *Projection) CompletedSteps() int {
	n := 0
	for _, s := range p.nodeStatus {
		if s == flow.NodeExecCompleted {
			n++
		}
	}
	return n
}

// Percent returns completed/total as a percentage clamped to [0, 100].
func (p *Projection) Percent() float64 {
	if p.TotalSteps <= 0 {
		return 0
	}
	pct := float64(p.CompletedSteps()) / float64(p.TotalSteps) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Terminal reports whether the projected status is final.
func (p *Projection) Terminal() bool { return p.Status.Terminal() }

// Apply merges one stream event into the projection. Once the status is
// terminal every further event is a no-op. TotalSteps may only be revised
// upward while non-terminal.
func (p *Projection) Apply(ev flow.StreamEvent) {
	if p.Terminal() {
		return
	}
	switch ev.Type {
	case flow.StreamEventStart:
		p.ExecutionID = ev.ExecutionID
		p.WorkflowName = ev.WorkflowName
		p.growTotal(ev.TotalSteps)
	case flow.StreamEventStep:
		p.growTotal(ev.Total)
		p.applyStep(ev.NodeID, ev.NodeLabel, ev.Status)
	case flow.StreamEventComplete:
		if ev.ExecutionID != "" {
			p.ExecutionID = ev.ExecutionID
		}
		p.Status = flow.ExecutionCompleted
	}
}

// ApplyRecord merges a polled execution record, for clients that fall
// back from the stream to GET /executions/{id}.
func (p *Projection) ApplyRecord(ex *flow.Execution) {
	if p.Terminal() || ex == nil {
		return
	}
	p.ExecutionID = ex.ID
	p.growTotal(len(ex.NodeExecutions))
	for _, ne := range ex.NodeExecutions {
		p.applyStep(ne.NodeID, "", ne.Status)
	}
	if ex.Status != "" {
		p.Status = ex.Status
	}
}

func (p *Projection) growTotal(total int) {
	if total > p.TotalSteps {
		p.TotalSteps = total
	}
}

// applyStep merges one node status. Re-applying the same status is a
// no-op, and a completed node never leaves the completed state.
func (p *Projection) applyStep(nodeID, label string, status flow.NodeExecutionStatus) {
	if nodeID == "" || status == "" {
		return
	}
	prev := p.nodeStatus[nodeID]
	if prev == flow.NodeExecCompleted {
		return
	}
	p.nodeStatus[nodeID] = status

	switch status {
	case flow.NodeExecRunning:
		if label != "" {
			p.CurrentLabel = label
		}
	case flow.NodeExecFailed:
		p.Status = flow.ExecutionFailed
	case flow.NodeExecWaitingApproval:
		p.Status = flow.ExecutionPendingApproval
	case flow.NodeExecCompleted:
		if p.Status == flow.ExecutionPendingApproval {
			p.Status = flow.ExecutionRunning
		}
	}
}

// NodeStatus returns the projected status of a node, or "" if unseen.
func (p *Projection) NodeStatus(nodeID string) flow.NodeExecutionStatus {
	return p.nodeStatus[nodeID]
}
