package flow

import "time"

// ApprovalStatus is the lifecycle of an approval request. Pending requests
// become terminal on the first approve/reject action.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is a pause point created when a run reaches a node marked
// requiresApproval. ActionData describes the side effect awaiting consent.
type Approval struct {
	ID              string         `json:"id"`
	ExecutionID     string         `json:"execution_id"`
	WorkflowID      string         `json:"workflow_id,omitempty"`
	NodeID          string         `json:"node_id"`
	Status          ApprovalStatus `json:"status"`
	ActionData      map[string]any `json:"action_data,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	RespondedAt     *time.Time     `json:"responded_at,omitempty"`
}
