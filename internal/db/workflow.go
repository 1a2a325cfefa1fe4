package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// WorkflowStore implements repository.WorkflowRepository on PostgreSQL.
type WorkflowStore struct{ db *DB }

func NewWorkflowStore(db *DB) *WorkflowStore { return &WorkflowStore{db: db} }

var _ repository.WorkflowRepository = (*WorkflowStore)(nil)

func (s *WorkflowStore) Create(ctx context.Context, wf *flow.Workflow) error {
	defJSON, err := json.Marshal(wf.Definition())
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	_, err = s.db.Pool.ExecContext(ctx,
		`INSERT INTO workflows (id, owner_id, name, description, definition, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		wf.ID, wf.OwnerID, wf.Name, wf.Description, defJSON, wf.IsActive, wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func (s *WorkflowStore) Get(ctx context.Context, id string) (*flow.Workflow, error) {
	row := s.db.Pool.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, definition, is_active, created_at, updated_at
		 FROM workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: workflow %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return wf, nil
}

func (s *WorkflowStore) List(ctx context.Context) ([]*flow.Workflow, error) {
	rows, err := s.db.Pool.QueryContext(ctx,
		`SELECT id, owner_id, name, description, definition, is_active, created_at, updated_at
		 FROM workflows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var result []*flow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

func (s *WorkflowStore) Update(ctx context.Context, wf *flow.Workflow) error {
	defJSON, err := json.Marshal(wf.Definition())
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	res, err := s.db.Pool.ExecContext(ctx,
		`UPDATE workflows SET name = $1, description = $2, definition = $3, is_active = $4, updated_at = $5
		 WHERE id = $6`,
		wf.Name, wf.Description, defJSON, wf.IsActive, time.Now(), wf.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: workflow %s", repository.ErrNotFound, wf.ID)
	}
	return nil
}

func (s *WorkflowStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.Pool.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: workflow %s", repository.ErrNotFound, id)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanWorkflow(sc scanner) (*flow.Workflow, error) {
	var wf flow.Workflow
	var defJSON []byte
	if err := sc.Scan(&wf.ID, &wf.OwnerID, &wf.Name, &wf.Description, &defJSON, &wf.IsActive, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return nil, err
	}
	var def flow.GraphDefinition
	if err := json.Unmarshal(defJSON, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	wf.Nodes = def.Nodes
	wf.Edges = def.Edges
	return &wf, nil
}
