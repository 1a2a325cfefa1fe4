package flow

import "time"

// ExecutionStatus is the lifecycle state of a workflow run. Transitions
// are driven entirely by the server; clients only observe.
type ExecutionStatus string

const (
	ExecutionRunning         ExecutionStatus = "running"
	ExecutionPaused          ExecutionStatus = "paused"
	ExecutionCompleted       ExecutionStatus = "completed"
	ExecutionFailed          ExecutionStatus = "failed"
	ExecutionPendingApproval ExecutionStatus = "pending_approval"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// NodeExecutionStatus is the per-node state within a run.
type NodeExecutionStatus string

const (
	NodeExecPending         NodeExecutionStatus = "pending"
	NodeExecRunning         NodeExecutionStatus = "running"
	NodeExecCompleted       NodeExecutionStatus = "completed"
	NodeExecFailed          NodeExecutionStatus = "failed"
	NodeExecWaitingApproval NodeExecutionStatus = "waiting_approval"
	NodeExecSkipped         NodeExecutionStatus = "skipped"
)

// NodeExecution records one node visit during a run.
type NodeExecution struct {
	NodeID      string              `json:"node_id"`
	Status      NodeExecutionStatus `json:"status"`
	Input       map[string]any      `json:"input,omitempty"`
	Output      map[string]any      `json:"output,omitempty"`
	Error       *string             `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// Execution is one run instance of a workflow, tracked step by step.
type Execution struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	Status         ExecutionStatus `json:"status"`
	CurrentNodeID  *string         `json:"current_node_id,omitempty"`
	TriggerData    map[string]any  `json:"trigger_data,omitempty"`
	NodeExecutions []NodeExecution `json:"node_executions"`
	Error          *string         `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Stream event types for the /api/executions/stream protocol. Each line
// of the response body is "data: <json>" where the JSON object carries
// one of these type tags.
const (
	StreamEventStart    = "start"
	StreamEventStep     = "step"
	StreamEventComplete = "complete"
)

// StreamEvent is one record of the execution stream. Fields are populated
// according to Type: start carries ExecutionID/TotalSteps/WorkflowName,
// step carries the node fields and running totals, complete carries
// nothing beyond the tag (ExecutionID is repeated for convenience).
type StreamEvent struct {
	Type         string              `json:"type"`
	ExecutionID  string              `json:"execution_id,omitempty"`
	WorkflowName string              `json:"workflow_name,omitempty"`
	TotalSteps   int                 `json:"total_steps,omitempty"`
	NodeID       string              `json:"node_id,omitempty"`
	NodeLabel    string              `json:"node_label,omitempty"`
	Status       NodeExecutionStatus `json:"status,omitempty"`
	Completed    int                 `json:"completed,omitempty"`
	Total        int                 `json:"total,omitempty"`
	Progress     float64             `json:"progress,omitempty"`
}
