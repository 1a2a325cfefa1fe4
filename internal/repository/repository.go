// Package repository defines storage interfaces for domain entities so
// callers don't care whether storage is in-memory or PostgreSQL.
package repository

import (
	"context"
	"errors"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// WorkflowRepository persists workflows, keyed by id.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *flow.Workflow) error
	Get(ctx context.Context, id string) (*flow.Workflow, error)
	List(ctx context.Context) ([]*flow.Workflow, error)
	Update(ctx context.Context, wf *flow.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository persists run records.
type ExecutionRepository interface {
	Create(ctx context.Context, ex *flow.Execution) error
	Get(ctx context.Context, id string) (*flow.Execution, error)
	List(ctx context.Context, workflowID string) ([]*flow.Execution, error)
	Update(ctx context.Context, ex *flow.Execution) error
}

// ApprovalRepository persists approval requests.
type ApprovalRepository interface {
	Create(ctx context.Context, a *flow.Approval) error
	Get(ctx context.Context, id string) (*flow.Approval, error)
	List(ctx context.Context, status flow.ApprovalStatus) ([]*flow.Approval, error)
	Update(ctx context.Context, a *flow.Approval) error
}

// ConnectionRepository persists service connections (credentials already
// encrypted by the service layer).
type ConnectionRepository interface {
	Create(ctx context.Context, c *flow.Connection) error
	Get(ctx context.Context, id string) (*flow.Connection, error)
	List(ctx context.Context) ([]*flow.Connection, error)
	Update(ctx context.Context, c *flow.Connection) error
	Delete(ctx context.Context, id string) error
}

// TemplateRepository persists workflow templates.
type TemplateRepository interface {
	Create(ctx context.Context, t *flow.Template) error
	Get(ctx context.Context, id string) (*flow.Template, error)
	List(ctx context.Context, category, businessType string) ([]*flow.Template, error)
}

// KnowledgeRepository persists knowledge-base entries.
type KnowledgeRepository interface {
	Create(ctx context.Context, e *flow.KnowledgeEntry) error
	Get(ctx context.Context, id string) (*flow.KnowledgeEntry, error)
	List(ctx context.Context, category string) ([]*flow.KnowledgeEntry, error)
	Update(ctx context.Context, e *flow.KnowledgeEntry) error
	Delete(ctx context.Context, id string) error
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *flow.User) error
	Get(ctx context.Context, id string) (*flow.User, error)
	GetByEmail(ctx context.Context, email string) (*flow.User, error)
	Update(ctx context.Context, u *flow.User) error
}
