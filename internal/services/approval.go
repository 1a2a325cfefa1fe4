package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// ErrAlreadyResolved is returned when an approve/reject action targets
// an approval that is no longer pending.
var ErrAlreadyResolved = fmt.Errorf("approval already resolved")

// ApprovalService resolves pending approval requests and resumes the
// paused execution that created them.
type ApprovalService struct {
	repo     repository.ApprovalRepository
	registry *ExecutionRegistry
}

func NewApprovalService(repo repository.ApprovalRepository, registry *ExecutionRegistry) *ApprovalService {
	return &ApprovalService{repo: repo, registry: registry}
}

// Get retrieves an approval by ID.
func (s *ApprovalService) Get(ctx context.Context, id string) (*flow.Approval, error) {
	return s.repo.Get(ctx, id)
}

// List returns approvals, optionally filtered by status.
func (s *ApprovalService) List(ctx context.Context, status flow.ApprovalStatus) ([]*flow.Approval, error) {
	return s.repo.List(ctx, status)
}

// Approve resolves a pending approval positively and resumes the run.
func (s *ApprovalService) Approve(ctx context.Context, id string) (*flow.Approval, error) {
	return s.resolve(ctx, id, true, "")
}

// Reject resolves a pending approval negatively with an optional reason.
// The run's gated node fails and the execution fails with it.
func (s *ApprovalService) Reject(ctx context.Context, id, reason string) (*flow.Approval, error) {
	return s.resolve(ctx, id, false, reason)
}

func (s *ApprovalService) resolve(ctx context.Context, id string, approved bool, reason string) (*flow.Approval, error) {
	approval, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status != flow.ApprovalPending {
		return nil, fmt.Errorf("approval %q: %w", id, ErrAlreadyResolved)
	}

	now := time.Now()
	approval.RespondedAt = &now
	if approved {
		approval.Status = flow.ApprovalApproved
	} else {
		approval.Status = flow.ApprovalRejected
		if reason != "" {
			approval.RejectionReason = &reason
		}
	}
	if err := s.repo.Update(ctx, approval); err != nil {
		return nil, err
	}

	handle, ok := s.registry.Get(approval.ExecutionID)
	if !ok {
		// The run is no longer in memory (e.g. server restart); the
		// record is updated but nothing resumes.
		slog.Warn("no active execution for approval", "approval_id", id, "execution_id", approval.ExecutionID)
		return approval, nil
	}
	if err := handle.Resume(approval.NodeID, map[string]any{
		"approved": approved,
		"reason":   reason,
	}); err != nil {
		slog.Warn("resume after approval", "approval_id", id, "error", err)
	}
	return approval, nil
}
