package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

type runnerFixture struct {
	runner     *Runner
	executions *repository.MemoryExecutions
	approvals  *repository.MemoryApprovals
	approvalSv *ApprovalService
	registry   *ExecutionRegistry
	runs       *RunManager
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	executions := repository.NewMemoryExecutions()
	approvals := repository.NewMemoryApprovals()
	registry := NewExecutionRegistry()
	runs := NewRunManager(time.Minute)
	t.Cleanup(runs.Stop)

	r := NewRunner(executions, approvals, registry, runs)
	r.StepDelay = time.Millisecond
	return &runnerFixture{
		runner:     r,
		executions: executions,
		approvals:  approvals,
		approvalSv: NewApprovalService(approvals, registry),
		registry:   registry,
		runs:       runs,
	}
}

func linearWorkflow() *flow.Workflow {
	return &flow.Workflow{
		ID:   "wf-1",
		Name: "Welcome Emails",
		Nodes: []flow.Node{
			{ID: "t", Type: flow.NodeTypeTrigger, Label: "New signup"},
			{ID: "a", Type: flow.NodeTypeAction, Label: "Send email"},
			{ID: "b", Type: flow.NodeTypeAction, Label: "Log to sheet"},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "t", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
		},
	}
}

// drain collects every event until the run channel closes.
func drain(t *testing.T, events <-chan flow.StreamEvent) []flow.StreamEvent {
	t.Helper()
	var out []flow.StreamEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, open := <-events:
			if !open {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("run never finished; got %d events", len(out))
		}
	}
}

func TestRunner_LinearWorkflowCompletes(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	ex, events, err := f.runner.Start(ctx, linearWorkflow(), map[string]any{"email": "ana@example.com"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := drain(t, events)

	if got[0].Type != flow.StreamEventStart || got[0].TotalSteps != 3 {
		t.Fatalf("first event = %+v", got[0])
	}
	last := got[len(got)-1]
	if last.Type != flow.StreamEventComplete || last.ExecutionID != ex.ID {
		t.Fatalf("last event = %+v", last)
	}

	stored, err := f.executions.Get(ctx, ex.ID)
	if err != nil {
		t.Fatalf("Get execution: %v", err)
	}
	if stored.Status != flow.ExecutionCompleted {
		t.Fatalf("status = %q", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Fatalf("CompletedAt not set")
	}
	for _, ne := range stored.NodeExecutions {
		if ne.Status != flow.NodeExecCompleted {
			t.Fatalf("node %s = %q", ne.NodeID, ne.Status)
		}
	}

	// Steps preserve topological order in the stream.
	var completedOrder []string
	for _, ev := range got {
		if ev.Type == flow.StreamEventStep && ev.Status == flow.NodeExecCompleted {
			completedOrder = append(completedOrder, ev.NodeID)
		}
	}
	want := []string{"t", "a", "b"}
	for i, id := range want {
		if completedOrder[i] != id {
			t.Fatalf("completed order = %v, want %v", completedOrder, want)
		}
	}
}

func TestRunner_ConditionBranchSkipsUntakenPath(t *testing.T) {
	f := newRunnerFixture(t)
	wf := &flow.Workflow{
		ID:   "wf-cond",
		Name: "Order routing",
		Nodes: []flow.Node{
			{ID: "t", Type: flow.NodeTypeTrigger, Label: "New order"},
			{ID: "c", Type: flow.NodeTypeCondition, Label: "Big order?", Parameters: map[string]any{
				"expression": "trigger.amount > 100",
			}},
			{ID: "big", Type: flow.NodeTypeAction, Label: "Notify sales"},
			{ID: "small", Type: flow.NodeTypeAction, Label: "Auto-fulfill"},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "t", Target: "c"},
			{ID: "e2", Source: "c", Target: "big", SourceHandle: "yes"},
			{ID: "e3", Source: "c", Target: "small", SourceHandle: "no"},
		},
	}

	ctx := context.Background()
	ex, events, err := f.runner.Start(ctx, wf, map[string]any{"amount": 250.0})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, events)

	stored, _ := f.executions.Get(ctx, ex.ID)
	status := map[string]flow.NodeExecutionStatus{}
	for _, ne := range stored.NodeExecutions {
		status[ne.NodeID] = ne.Status
	}
	if status["big"] != flow.NodeExecCompleted {
		t.Fatalf("taken branch = %q", status["big"])
	}
	if status["small"] != flow.NodeExecSkipped {
		t.Fatalf("untaken branch = %q, want skipped", status["small"])
	}
	if stored.Status != flow.ExecutionCompleted {
		t.Fatalf("status = %q", stored.Status)
	}
}

func TestRunner_BothBranchesRouteToSharedTarget(t *testing.T) {
	// yes and no edges may both point at one node; whichever branch is
	// taken must still reach it.
	f := newRunnerFixture(t)
	wf := &flow.Workflow{
		ID:   "wf-shared",
		Name: "Always notify",
		Nodes: []flow.Node{
			{ID: "t", Type: flow.NodeTypeTrigger, Label: "New order"},
			{ID: "c", Type: flow.NodeTypeCondition, Label: "Big order?", Parameters: map[string]any{
				"expression": "trigger.amount > 100",
			}},
			{ID: "a", Type: flow.NodeTypeAction, Label: "Notify ops"},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "t", Target: "c"},
			{ID: "e2", Source: "c", Target: "a", SourceHandle: "yes"},
			{ID: "e3", Source: "c", Target: "a", SourceHandle: "no"},
		},
	}

	ctx := context.Background()
	for _, amount := range []float64{250, 10} {
		ex, events, err := f.runner.Start(ctx, wf, map[string]any{"amount": amount})
		if err != nil {
			t.Fatalf("Start(amount=%v): %v", amount, err)
		}
		drain(t, events)

		stored, _ := f.executions.Get(ctx, ex.ID)
		if stored.Status != flow.ExecutionCompleted {
			t.Fatalf("amount=%v: status = %q", amount, stored.Status)
		}
		for _, ne := range stored.NodeExecutions {
			if ne.NodeID == "a" && ne.Status != flow.NodeExecCompleted {
				t.Fatalf("amount=%v: shared target = %q, want completed", amount, ne.Status)
			}
		}
	}
}

func TestRunner_ConditionErrorFailsRun(t *testing.T) {
	f := newRunnerFixture(t)
	wf := &flow.Workflow{
		ID:   "wf-bad",
		Name: "Broken condition",
		Nodes: []flow.Node{
			{ID: "t", Type: flow.NodeTypeTrigger},
			{ID: "c", Type: flow.NodeTypeCondition, Parameters: map[string]any{
				"expression": "trigger.amount +",
			}},
		},
		Edges: []flow.Edge{{ID: "e1", Source: "t", Target: "c"}},
	}

	ctx := context.Background()
	ex, events, err := f.runner.Start(ctx, wf, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, events)

	stored, _ := f.executions.Get(ctx, ex.ID)
	if stored.Status != flow.ExecutionFailed {
		t.Fatalf("status = %q, want failed", stored.Status)
	}
	if stored.Error == nil {
		t.Fatalf("error not recorded")
	}
}

func approvalGateWorkflow() *flow.Workflow {
	return &flow.Workflow{
		ID:   "wf-gate",
		Name: "Refund flow",
		Nodes: []flow.Node{
			{ID: "t", Type: flow.NodeTypeTrigger, Label: "Refund requested"},
			{ID: "g", Type: flow.NodeTypeAction, Label: "Issue refund", RequiresApproval: true},
			{ID: "n", Type: flow.NodeTypeAction, Label: "Notify customer"},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "t", Target: "g"},
			{ID: "e2", Source: "g", Target: "n"},
		},
	}
}

// waitPendingApproval polls until the run has created its approval record.
func waitPendingApproval(t *testing.T, repo *repository.MemoryApprovals) *flow.Approval {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		pending, err := repo.List(context.Background(), flow.ApprovalPending)
		if err != nil {
			t.Fatalf("List approvals: %v", err)
		}
		if len(pending) > 0 {
			return pending[0]
		}
		select {
		case <-deadline:
			t.Fatalf("approval never created")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRunner_ApprovalGateApproved(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	ex, events, err := f.runner.Start(ctx, approvalGateWorkflow(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	appr := waitPendingApproval(t, f.approvals)
	if appr.ExecutionID != ex.ID || appr.NodeID != "g" {
		t.Fatalf("approval = %+v", appr)
	}
	if appr.ActionData["node_label"] != "Issue refund" {
		t.Fatalf("action data = %v", appr.ActionData)
	}

	if _, err := f.approvalSv.Approve(ctx, appr.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	drain(t, events)

	stored, _ := f.executions.Get(ctx, ex.ID)
	if stored.Status != flow.ExecutionCompleted {
		t.Fatalf("status = %q, want completed after approval", stored.Status)
	}

	resolved, _ := f.approvals.Get(ctx, appr.ID)
	if resolved.Status != flow.ApprovalApproved || resolved.RespondedAt == nil {
		t.Fatalf("approval record = %+v", resolved)
	}
}

func TestRunner_ApprovalGateRejected(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	ex, events, err := f.runner.Start(ctx, approvalGateWorkflow(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	appr := waitPendingApproval(t, f.approvals)
	if _, err := f.approvalSv.Reject(ctx, appr.ID, "amount looks wrong"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	drain(t, events)

	stored, _ := f.executions.Get(ctx, ex.ID)
	if stored.Status != flow.ExecutionFailed {
		t.Fatalf("status = %q, want failed after rejection", stored.Status)
	}
	if stored.Error == nil || *stored.Error != "amount looks wrong" {
		t.Fatalf("error = %v", stored.Error)
	}

	status := map[string]flow.NodeExecutionStatus{}
	for _, ne := range stored.NodeExecutions {
		status[ne.NodeID] = ne.Status
	}
	if status["g"] != flow.NodeExecFailed {
		t.Fatalf("gated node = %q", status["g"])
	}
}

func TestRunner_RejectedApprovalCannotBeReResolved(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	_, events, err := f.runner.Start(ctx, approvalGateWorkflow(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	appr := waitPendingApproval(t, f.approvals)
	if _, err := f.approvalSv.Approve(ctx, appr.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	drain(t, events)

	if _, err := f.approvalSv.Reject(ctx, appr.ID, "too late"); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolution = %v, want ErrAlreadyResolved", err)
	}
}

func TestRunner_InvalidGraphRejected(t *testing.T) {
	f := newRunnerFixture(t)
	wf := &flow.Workflow{
		ID: "wf-cycle",
		Nodes: []flow.Node{
			{ID: "a", Type: flow.NodeTypeAction},
			{ID: "b", Type: flow.NodeTypeAction},
		},
		Edges: []flow.Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	}
	if _, _, err := f.runner.Start(context.Background(), wf, nil); err == nil {
		t.Fatalf("cyclic workflow should be rejected")
	}
}

func delayWorkflow(duration string) *flow.Workflow {
	return &flow.Workflow{
		ID:   "wf-delay",
		Name: "Paced",
		Nodes: []flow.Node{
			{ID: "t", Type: flow.NodeTypeTrigger},
			{ID: "d", Type: flow.NodeTypeDelay, Parameters: map[string]any{"duration": duration}},
		},
		Edges: []flow.Edge{{ID: "e1", Source: "t", Target: "d"}},
	}
}

func TestRunner_DelayNodeHonorsDuration(t *testing.T) {
	f := newRunnerFixture(t)

	start := time.Now()
	ex, events, err := f.runner.Start(context.Background(), delayWorkflow("30ms"), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, events)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("run finished in %v, want at least the configured 30ms", elapsed)
	}

	stored, _ := f.executions.Get(context.Background(), ex.ID)
	for _, ne := range stored.NodeExecutions {
		if ne.NodeID == "d" && ne.Output["delayed_ms"] != int64(30) {
			t.Fatalf("delay output = %v, want delayed_ms 30", ne.Output)
		}
	}
}

func TestRunner_DelayNodeCaps(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.MaxDelay = 5 * time.Millisecond

	start := time.Now()
	ex, events, err := f.runner.Start(context.Background(), delayWorkflow("1h"), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drain(t, events)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("delay not capped, run took %v", elapsed)
	}

	stored, _ := f.executions.Get(context.Background(), ex.ID)
	if stored.Status != flow.ExecutionCompleted {
		t.Fatalf("status = %q", stored.Status)
	}
}

func TestRunner_CancelAllReleasesApprovalGate(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	ex, events, err := f.runner.Start(ctx, approvalGateWorkflow(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitPendingApproval(t, f.approvals)

	f.registry.CancelAll()
	drain(t, events)

	stored, _ := f.executions.Get(ctx, ex.ID)
	if stored.Status != flow.ExecutionFailed {
		t.Fatalf("status = %q, want failed after cancellation", stored.Status)
	}
	if stored.Error == nil || *stored.Error != "execution canceled" {
		t.Fatalf("error = %v, want execution canceled", stored.Error)
	}
}
