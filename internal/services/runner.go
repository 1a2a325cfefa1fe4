package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/expr-lang/expr"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/graph"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// Runner executes workflow graphs step by step, recording node state in
// the execution repository and publishing progress events for streaming
// consumers. Condition branches are evaluated; approval gates pause the
// walk until the approvals endpoint resumes it.
type Runner struct {
	executions repository.ExecutionRepository
	approvals  repository.ApprovalRepository
	registry   *ExecutionRegistry
	runs       *RunManager

	// StepDelay paces non-blocking nodes so streamed progress is
	// observable. MaxDelay caps delay-node sleeps.
	StepDelay time.Duration
	MaxDelay  time.Duration
}

func NewRunner(executions repository.ExecutionRepository, approvals repository.ApprovalRepository, registry *ExecutionRegistry, runs *RunManager) *Runner {
	return &Runner{
		executions: executions,
		approvals:  approvals,
		registry:   registry,
		runs:       runs,
		StepDelay:  300 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// Start validates the workflow graph, creates an execution record, and
// begins executing in the background. The returned channel carries
// progress events and is closed when the run reaches a terminal state.
// The run itself is not tied to ctx; a consumer that stops reading only
// stops receiving.
func (r *Runner) Start(ctx context.Context, wf *flow.Workflow, triggerData map[string]any) (*flow.Execution, <-chan flow.StreamEvent, error) {
	d, err := graph.BuildDAG(wf.Definition())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid workflow graph: %w", err)
	}
	if _, err := d.Start(); err != nil {
		return nil, nil, fmt.Errorf("invalid workflow graph: %w", err)
	}

	ex := &flow.Execution{
		ID:          flow.GenerateID("exec"),
		WorkflowID:  wf.ID,
		Status:      flow.ExecutionRunning,
		TriggerData: triggerData,
		CreatedAt:   time.Now(),
	}
	for _, id := range d.TopologicalOrder() {
		ex.NodeExecutions = append(ex.NodeExecutions, flow.NodeExecution{
			NodeID: id,
			Status: flow.NodeExecPending,
		})
	}
	if err := r.executions.Create(ctx, ex); err != nil {
		return nil, nil, fmt.Errorf("create execution: %w", err)
	}

	r.runs.Register(ex.ID)
	handle := r.registry.Register(ex.ID)

	events := make(chan flow.StreamEvent, 64)
	go r.run(ex, wf, d, handle, events)

	return ex, events, nil
}

// run walks the DAG in topological order. Nodes cut off by a condition
// branch are marked skipped. The walk stops on the first failure.
func (r *Runner) run(ex *flow.Execution, wf *flow.Workflow, d *graph.DAG, handle *ExecutionHandle, events chan<- flow.StreamEvent) {
	ctx := context.Background()
	defer close(events)
	defer r.registry.Unregister(ex.ID)

	emit := func(ev flow.StreamEvent) {
		r.runs.Append(ex.ID, ev)
		select {
		case events <- ev:
		default:
			// Consumer stopped reading; the buffer keeps the record.
		}
	}

	emit(flow.StreamEvent{
		Type:         flow.StreamEventStart,
		ExecutionID:  ex.ID,
		WorkflowName: wf.Name,
		TotalSteps:   d.Len(),
	})

	order := d.TopologicalOrder()
	total := len(order)
	completed := 0

	// enabled tracks nodes reachable through taken branches.
	enabled := make(map[string]bool)
	if start, err := d.Start(); err == nil {
		enabled[start.ID] = true
	}

	finish := func(status flow.ExecutionStatus, errMsg string) {
		now := time.Now()
		ex.Status = status
		ex.CompletedAt = &now
		ex.CurrentNodeID = nil
		if errMsg != "" {
			ex.Error = &errMsg
		}
		if err := r.executions.Update(ctx, ex); err != nil {
			slog.Error("update execution", "execution_id", ex.ID, "error", err)
		}
		emit(flow.StreamEvent{Type: flow.StreamEventComplete, ExecutionID: ex.ID})
		r.runs.Complete(ex.ID, status)
	}

	for i, nodeID := range order {
		node := d.Node(nodeID)

		// A node is runnable when at least one parent enabled it, or it
		// is a root. Everything else was branched away.
		if !enabled[nodeID] && len(d.Parents(nodeID)) > 0 {
			r.setNodeStatus(ctx, ex, nodeID, flow.NodeExecSkipped, nil, "")
			emit(r.stepEvent(ex.ID, node, flow.NodeExecSkipped, completed, total))
			continue
		}
		enabled[nodeID] = true

		ex.CurrentNodeID = &order[i]
		ex.Status = flow.ExecutionRunning
		r.setNodeStatus(ctx, ex, nodeID, flow.NodeExecRunning, nil, "")
		emit(r.stepEvent(ex.ID, node, flow.NodeExecRunning, completed, total))

		if node.RequiresApproval || node.Type == flow.NodeTypeApproval {
			approved, reason := r.waitForApproval(ctx, ex, wf, node, handle, emit, completed, total)
			if !approved {
				msg := "rejected by user"
				if reason != "" {
					msg = reason
				}
				r.setNodeStatus(ctx, ex, nodeID, flow.NodeExecFailed, nil, msg)
				emit(r.stepEvent(ex.ID, node, flow.NodeExecFailed, completed, total))
				finish(flow.ExecutionFailed, msg)
				return
			}
		}

		output, next, err := r.executeNode(ex, d, node)
		if err != nil {
			msg := err.Error()
			r.setNodeStatus(ctx, ex, nodeID, flow.NodeExecFailed, nil, msg)
			emit(r.stepEvent(ex.ID, node, flow.NodeExecFailed, completed, total))
			finish(flow.ExecutionFailed, msg)
			return
		}
		for _, child := range next {
			enabled[child] = true
		}

		completed++
		r.setNodeStatus(ctx, ex, nodeID, flow.NodeExecCompleted, output, "")
		emit(r.stepEvent(ex.ID, node, flow.NodeExecCompleted, completed, total))
	}

	finish(flow.ExecutionCompleted, "")
}

// executeNode runs one node and returns its output and the children to
// enable. Condition nodes enable only the taken branch.
func (r *Runner) executeNode(ex *flow.Execution, d *graph.DAG, node *flow.Node) (map[string]any, []string, error) {
	switch node.Type {
	case flow.NodeTypeCondition:
		taken, err := r.evalCondition(ex, node)
		if err != nil {
			return nil, nil, err
		}
		handle := "no"
		if taken {
			handle = "yes"
		}
		var next []string
		for _, child := range d.Children(node.ID) {
			for _, e := range d.Edges(node.ID, child) {
				if e.SourceHandle == handle || e.SourceHandle == "" {
					next = append(next, child)
					break
				}
			}
		}
		return map[string]any{"result": taken, "branch": handle}, next, nil

	case flow.NodeTypeDelay:
		dur := r.delayFor(node)
		time.Sleep(dur)
		return map[string]any{"delayed_ms": dur.Milliseconds()}, d.Children(node.ID), nil

	default:
		// Trigger, action, AI, and unknown node types complete after a
		// short simulated work interval.
		time.Sleep(r.StepDelay)
		return map[string]any{"ok": true}, d.Children(node.ID), nil
	}
}

// evalCondition evaluates the node's "expression" parameter against the
// trigger data and prior node outputs. The expression must yield a bool.
func (r *Runner) evalCondition(ex *flow.Execution, node *flow.Node) (bool, error) {
	src, _ := node.Parameters["expression"].(string)
	if src == "" {
		return true, nil
	}

	outputs := make(map[string]any)
	for _, ne := range ex.NodeExecutions {
		if ne.Output != nil {
			outputs[ne.NodeID] = ne.Output
		}
	}
	env := map[string]any{
		"trigger": ex.TriggerData,
		"nodes":   outputs,
	}

	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", node.ID, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", node.ID, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q: expression is not boolean", node.ID)
	}
	return b, nil
}

// delayFor reads the node's "duration" parameter, a Go duration string
// like "5m". Missing or unparseable values fall back to StepDelay.
func (r *Runner) delayFor(node *flow.Node) time.Duration {
	raw, _ := node.Parameters["duration"].(string)
	dur, err := time.ParseDuration(raw)
	if err != nil || dur <= 0 {
		dur = r.StepDelay
	}
	if dur > r.MaxDelay {
		dur = r.MaxDelay
	}
	return dur
}

// waitForApproval creates a pending approval record, flips the execution
// to pending_approval, and blocks until the approvals endpoint resumes
// the node. Returns the decision and an optional rejection reason.
func (r *Runner) waitForApproval(ctx context.Context, ex *flow.Execution, wf *flow.Workflow, node *flow.Node, handle *ExecutionHandle, emit func(flow.StreamEvent), completed, total int) (bool, string) {
	approval := &flow.Approval{
		ID:          flow.GenerateID("appr"),
		ExecutionID: ex.ID,
		WorkflowID:  wf.ID,
		NodeID:      node.ID,
		Status:      flow.ApprovalPending,
		ActionData: map[string]any{
			"node_label": node.Label,
			"node_type":  string(node.Type),
			"parameters": node.Parameters,
		},
		CreatedAt: time.Now(),
	}
	if err := r.approvals.Create(ctx, approval); err != nil {
		slog.Error("create approval", "execution_id", ex.ID, "node_id", node.ID, "error", err)
	}

	ex.Status = flow.ExecutionPendingApproval
	r.setNodeStatus(ctx, ex, node.ID, flow.NodeExecWaitingApproval, nil, "")
	emit(r.stepEvent(ex.ID, node, flow.NodeExecWaitingApproval, completed, total))
	slog.Info("execution paused for approval", "execution_id", ex.ID, "node_id", node.ID, "approval_id", approval.ID)

	payload, ok := handle.WaitForResume(node.ID)
	if !ok {
		return false, "execution canceled"
	}
	approved, _ := payload["approved"].(bool)
	reason, _ := payload["reason"].(string)
	return approved, reason
}

func (r *Runner) stepEvent(executionID string, node *flow.Node, status flow.NodeExecutionStatus, completed, total int) flow.StreamEvent {
	progress := 0.0
	if total > 0 {
		progress = float64(completed) / float64(total)
	}
	return flow.StreamEvent{
		Type:        flow.StreamEventStep,
		ExecutionID: executionID,
		NodeID:      node.ID,
		NodeLabel:   node.Label,
		Status:      status,
		Completed:   completed,
		Total:       total,
		Progress:    progress,
	}
}

// setNodeStatus mutates the execution's node record and persists the
// whole execution.
func (r *Runner) setNodeStatus(ctx context.Context, ex *flow.Execution, nodeID string, status flow.NodeExecutionStatus, output map[string]any, errMsg string) {
	now := time.Now()
	for i := range ex.NodeExecutions {
		ne := &ex.NodeExecutions[i]
		if ne.NodeID != nodeID {
			continue
		}
		ne.Status = status
		switch status {
		case flow.NodeExecRunning:
			ne.StartedAt = now
		case flow.NodeExecCompleted:
			ne.Output = output
			ne.CompletedAt = &now
		case flow.NodeExecFailed:
			ne.Error = &errMsg
			ne.CompletedAt = &now
		case flow.NodeExecSkipped:
			ne.CompletedAt = &now
		}
		break
	}
	if err := r.executions.Update(ctx, ex); err != nil {
		slog.Error("update execution", "execution_id", ex.ID, "error", err)
	}
}
