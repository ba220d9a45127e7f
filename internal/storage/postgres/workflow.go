package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/rollflow/internal/workflow"
)

// WorkflowRepository is a workflow.Store backed by the workflow_states table.
type WorkflowRepository struct {
	db *pgxpool.Pool
}

// NewWorkflowRepository creates a WorkflowRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewWorkflowRepository(db *pgxpool.Pool) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Save upserts st.
//
// Postcondition: the row for st.WorkflowID holds the serialized state.
func (r *WorkflowRepository) Save(ctx context.Context, st *workflow.State) error {
	data, err := workflow.Serialize(st)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO workflow_states (id, workflow_type, status, state, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET workflow_type = EXCLUDED.workflow_type,
		     status        = EXCLUDED.status,
		     state         = EXCLUDED.state,
		     updated_at    = NOW()`,
		st.WorkflowID, st.WorkflowType, string(st.Status), data,
	)
	if err != nil {
		return fmt.Errorf("saving workflow state %q: %w", st.WorkflowID, err)
	}
	return nil
}

// Load retrieves the state for id.
//
// Postcondition: returns an error wrapping workflow.ErrNotFound if no row exists.
func (r *WorkflowRepository) Load(ctx context.Context, id string) (*workflow.State, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT state FROM workflow_states WHERE id = $1`, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", workflow.ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying workflow state %q: %w", id, err)
	}
	return workflow.Deserialize(data)
}

// Delete removes the state for id.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM workflow_states WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting workflow state %q: %w", id, err)
	}
	return nil
}

// StateSummary is one row of ListByStatus.
type StateSummary struct {
	ID           string
	WorkflowType string
	Status       workflow.Status
	UpdatedAt    time.Time
}

// ListByStatus returns the stored workflows with status, most recently
// updated first.
func (r *WorkflowRepository) ListByStatus(ctx context.Context, status workflow.Status) ([]StateSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, workflow_type, status, updated_at
		 FROM workflow_states WHERE status = $1
		 ORDER BY updated_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("listing workflow states: %w", err)
	}
	defer rows.Close()

	var out []StateSummary
	for rows.Next() {
		var s StateSummary
		var st string
		if err := rows.Scan(&s.ID, &s.WorkflowType, &st, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning workflow state: %w", err)
		}
		s.Status = workflow.Status(st)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow states: %w", err)
	}
	return out, nil
}
