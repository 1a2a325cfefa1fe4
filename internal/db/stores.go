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

// ApprovalStore implements repository.ApprovalRepository on PostgreSQL.
type ApprovalStore struct{ db *DB }

func NewApprovalStore(db *DB) *ApprovalStore { return &ApprovalStore{db: db} }

var _ repository.ApprovalRepository = (*ApprovalStore)(nil)

func (s *ApprovalStore) Create(ctx context.Context, a *flow.Approval) error {
	dataJSON, err := json.Marshal(a.ActionData)
	if err != nil {
		return fmt.Errorf("marshal action data: %w", err)
	}
	_, err = s.db.Pool.ExecContext(ctx,
		`INSERT INTO approvals (id, execution_id, workflow_id, node_id, status, action_data, rejection_reason, created_at, responded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ExecutionID, a.WorkflowID, a.NodeID, string(a.Status), dataJSON, a.RejectionReason, a.CreatedAt, a.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *ApprovalStore) Get(ctx context.Context, id string) (*flow.Approval, error) {
	row := s.db.Pool.QueryRowContext(ctx,
		`SELECT id, execution_id, workflow_id, node_id, status, action_data, rejection_reason, created_at, responded_at
		 FROM approvals WHERE id = $1`, id)
	a, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: approval %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return a, nil
}

func (s *ApprovalStore) List(ctx context.Context, status flow.ApprovalStatus) ([]*flow.Approval, error) {
	query := `SELECT id, execution_id, workflow_id, node_id, status, action_data, rejection_reason, created_at, responded_at
	          FROM approvals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var result []*flow.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *ApprovalStore) Update(ctx context.Context, a *flow.Approval) error {
	_, err := s.db.Pool.ExecContext(ctx,
		`UPDATE approvals SET status = $1, rejection_reason = $2, responded_at = $3 WHERE id = $4`,
		string(a.Status), a.RejectionReason, a.RespondedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update approval: %w", err)
	}
	return nil
}

func scanApproval(sc scanner) (*flow.Approval, error) {
	var a flow.Approval
	var status string
	var dataJSON []byte
	if err := sc.Scan(&a.ID, &a.ExecutionID, &a.WorkflowID, &a.NodeID, &status, &dataJSON, &a.RejectionReason, &a.CreatedAt, &a.RespondedAt); err != nil {
		return nil, err
	}
	a.Status = flow.ApprovalStatus(status)
	if err := json.Unmarshal(dataJSON, &a.ActionData); err != nil {
		return nil, fmt.Errorf("unmarshal action data: %w", err)
	}
	return &a, nil
}

// ConnectionStore implements repository.ConnectionRepository on PostgreSQL.
type ConnectionStore struct{ db *DB }

func NewConnectionStore(db *DB) *ConnectionStore { return &ConnectionStore{db: db} }

var _ repository.ConnectionRepository = (*ConnectionStore)(nil)

func (s *ConnectionStore) Create(ctx context.Context, c *flow.Connection) error {
	credsJSON, err := json.Marshal(c.Credentials)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	_, err = s.db.Pool.ExecContext(ctx,
		`INSERT INTO connections (id, type, name, auth_type, credentials, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Type, c.Name, string(c.AuthType), credsJSON, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (*flow.Connection, error) {
	row := s.db.Pool.QueryRowContext(ctx,
		`SELECT id, type, name, auth_type, credentials, created_at FROM connections WHERE id = $1`, id)
	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: connection %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

func (s *ConnectionStore) List(ctx context.Context) ([]*flow.Connection, error) {
	rows, err := s.db.Pool.QueryContext(ctx,
		`SELECT id, type, name, auth_type, credentials, created_at FROM connections ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var result []*flow.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *ConnectionStore) Update(ctx context.Context, c *flow.Connection) error {
	credsJSON, err := json.Marshal(c.Credentials)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	_, err = s.db.Pool.ExecContext(ctx,
		`UPDATE connections SET type = $1, name = $2, auth_type = $3, credentials = $4 WHERE id = $5`,
		c.Type, c.Name, string(c.AuthType), credsJSON, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update connection: %w", err)
	}
	return nil
}

func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.Pool.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

func scanConnection(sc scanner) (*flow.Connection, error) {
	var c flow.Connection
	var authType string
	var credsJSON []byte
	if err := sc.Scan(&c.ID, &c.Type, &c.Name, &authType, &credsJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.AuthType = flow.AuthType(authType)
	if err := json.Unmarshal(credsJSON, &c.Credentials); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return &c, nil
}

// TemplateStore implements repository.TemplateRepository on PostgreSQL.
type TemplateStore struct{ db *DB }

func NewTemplateStore(db *DB) *TemplateStore { return &TemplateStore{db: db} }

var _ repository.TemplateRepository = (*TemplateStore)(nil)

func (s *TemplateStore) Create(ctx context.Context, t *flow.Template) error {
	defJSON, err := json.Marshal(t.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	_, err = s.db.Pool.ExecContext(ctx,
		`INSERT INTO templates (id, name, category, business_type, description, definition)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET definition = EXCLUDED.definition, name = EXCLUDED.name`,
		t.ID, t.Name, t.Category, t.BusinessType, t.Description, defJSON,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *TemplateStore) Get(ctx context.Context, id string) (*flow.Template, error) {
	row := s.db.Pool.QueryRowContext(ctx,
		`SELECT id, name, category, business_type, description, definition FROM templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: template %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) List(ctx context.Context, category, businessType string) ([]*flow.Template, error) {
	query := `SELECT id, name, category, business_type, description, definition FROM templates WHERE 1=1`
	args := []any{}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if businessType != "" {
		args = append(args, businessType)
		query += fmt.Sprintf(` AND business_type = $%d`, len(args))
	}
	query += ` ORDER BY name`

	rows, err := s.db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var result []*flow.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTemplate(sc scanner) (*flow.Template, error) {
	var t flow.Template
	var defJSON []byte
	if err := sc.Scan(&t.ID, &t.Name, &t.Category, &t.BusinessType, &t.Description, &defJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(defJSON, &t.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return &t, nil
}

// KnowledgeStore implements repository.KnowledgeRepository on PostgreSQL.
type KnowledgeStore struct{ db *DB }

func NewKnowledgeStore(db *DB) *KnowledgeStore { return &KnowledgeStore{db: db} }

var _ repository.KnowledgeRepository = (*KnowledgeStore)(nil)

func (s *KnowledgeStore) Create(ctx context.Context, e *flow.KnowledgeEntry) error {
	_, err := s.db.Pool.ExecContext(ctx,
		`INSERT INTO knowledge (id, title, category, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Title, e.Category, e.Content, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert knowledge entry: %w", err)
	}
	return nil
}

func (s *KnowledgeStore) Get(ctx context.Context, id string) (*flow.KnowledgeEntry, error) {
	var e flow.KnowledgeEntry
	err := s.db.Pool.QueryRowContext(ctx,
		`SELECT id, title, category, content, created_at, updated_at FROM knowledge WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Category, &e.Content, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: knowledge entry %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get knowledge entry: %w", err)
	}
	return &e, nil
}

func (s *KnowledgeStore) List(ctx context.Context, category string) ([]*flow.KnowledgeEntry, error) {
	query := `SELECT id, title, category, content, created_at, updated_at FROM knowledge`
	args := []any{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list knowledge entries: %w", err)
	}
	defer rows.Close()

	var result []*flow.KnowledgeEntry
	for rows.Next() {
		var e flow.KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Category, &e.Content, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}

func (s *KnowledgeStore) Update(ctx context.Context, e *flow.KnowledgeEntry) error {
	res, err := s.db.Pool.ExecContext(ctx,
		`UPDATE knowledge SET title = $1, category = $2, content = $3, updated_at = $4 WHERE id = $5`,
		e.Title, e.Category, e.Content, time.Now(), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update knowledge entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: knowledge entry %s", repository.ErrNotFound, e.ID)
	}
	return nil
}

func (s *KnowledgeStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.Pool.ExecContext(ctx, `DELETE FROM knowledge WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete knowledge entry: %w", err)
	}
	return nil
}

// UserStore implements repository.UserRepository on PostgreSQL.
type UserStore struct{ db *DB }

func NewUserStore(db *DB) *UserStore { return &UserStore{db: db} }

var _ repository.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, u *flow.User) error {
	_, err := s.db.Pool.ExecContext(ctx,
		`INSERT INTO users (id, email, name, business_type, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.BusinessType, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*flow.User, error) {
	return s.get(ctx, `id`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*flow.User, error) {
	return s.get(ctx, `email`, email)
}

func (s *UserStore) get(ctx context.Context, col, val string) (*flow.User, error) {
	var u flow.User
	err := s.db.Pool.QueryRowContext(ctx,
		`SELECT id, email, name, business_type, password_hash, created_at FROM users WHERE `+col+` = $1`, val,
	).Scan(&u.ID, &u.Email, &u.Name, &u.BusinessType, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, val)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Update(ctx context.Context, u *flow.User) error {
	_, err := s.db.Pool.ExecContext(ctx,
		`UPDATE users SET name = $1, business_type = $2, password_hash = $3 WHERE id = $4`,
		u.Name, u.BusinessType, u.PasswordHash, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
