package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// ExecutionStore implements repository.ExecutionRepository on PostgreSQL.
// Node executions live in a JSONB column; runs are read back whole.
type ExecutionStore struct{ db *DB }

func NewExecutionStore(db *DB) *ExecutionStore { return &ExecutionStore{db: db} }

var _ repository.ExecutionRepository = (*ExecutionStore)(nil)

func (s *ExecutionStore) Create(ctx context.Context, ex *flow.Execution) error {
	return s.upsert(ctx, ex, true)
}

func (s *ExecutionStore) Update(ctx context.Context, ex *flow.Execution) error {
	return s.upsert(ctx, ex, false)
}

func (s *ExecutionStore) upsert(ctx context.Context, ex *flow.Execution, insert bool) error {
	trigJSON, err := json.Marshal(ex.TriggerData)
	if err != nil {
		return fmt.Errorf("marshal trigger data: %w", err)
	}
	nodesJSON, err := json.Marshal(ex.NodeExecutions)
	if err != nil {
		return fmt.Errorf("marshal node executions: %w", err)
	}

	if insert {
		_, err = s.db.Pool.ExecContext(ctx,
			`INSERT INTO executions (id, workflow_id, status, current_node, trigger_data, node_execs, error, created_at, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ex.ID, ex.WorkflowID, string(ex.Status), ex.CurrentNodeID, trigJSON, nodesJSON, ex.Error, ex.CreatedAt, ex.CompletedAt,
		)
	} else {
		_, err = s.db.Pool.ExecContext(ctx,
			`UPDATE executions SET status = $1, current_node = $2, node_execs = $3, error = $4, completed_at = $5
			 WHERE id = $6`,
			string(ex.Status), ex.CurrentNodeID, nodesJSON, ex.Error, ex.CompletedAt, ex.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("store execution: %w", err)
	}
	return nil
}

func (s *ExecutionStore) Get(ctx context.Context, id string) (*flow.Execution, error) {
	row := s.db.Pool.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, current_node, trigger_data, node_execs, error, created_at, completed_at
		 FROM executions WHERE id = $1`, id)
	ex, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: execution %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return ex, nil
}

func (s *ExecutionStore) List(ctx context.Context, workflowID string) ([]*flow.Execution, error) {
	query := `SELECT id, workflow_id, status, current_node, trigger_data, node_execs, error, created_at, completed_at
	          FROM executions`
	args := []any{}
	if workflowID != "" {
		query += ` WHERE workflow_id = $1`
		args = append(args, workflowID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var result []*flow.Execution
	for rows.Next() {
		ex, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

func scanExecution(sc scanner) (*flow.Execution, error) {
	var ex flow.Execution
	var status string
	var trigJSON, nodesJSON []byte
	if err := sc.Scan(&ex.ID, &ex.WorkflowID, &status, &ex.CurrentNodeID, &trigJSON, &nodesJSON, &ex.Error, &ex.CreatedAt, &ex.CompletedAt); err != nil {
		return nil, err
	}
	ex.Status = flow.ExecutionStatus(status)
	if err := json.Unmarshal(trigJSON, &ex.TriggerData); err != nil {
		return nil, fmt.Errorf("unmarshal trigger data: %w", err)
	}
	if err := json.Unmarshal(nodesJSON, &ex.NodeExecutions); err != nil {
		return nil, fmt.Errorf("unmarshal node executions: %w", err)
	}
	return &ex, nil
}
