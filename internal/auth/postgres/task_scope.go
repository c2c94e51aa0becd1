package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/frahmantamala/task-dashboard/internal/auth"
	"github.com/jmoiron/sqlx"
)

// TaskScopeRepository answers route guards with a narrow sqlx read instead
// of hydrating the whole task aggregate.
type TaskScopeRepository struct {
	db *sqlx.DB
}

func NewTaskScopeRepository(db *sqlx.DB) auth.TaskScopeReader {
	return &TaskScopeRepository{db: db}
}

func (r *TaskScopeRepository) TaskScope(ctx context.Context, taskID string) (*auth.TaskScope, error) {
	var division string
	err := r.db.GetContext(ctx, &division, r.db.Rebind(`SELECT division FROM tasks WHERE id = ?`), taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var assignees []string
	err = r.db.SelectContext(ctx, &assignees,
		r.db.Rebind(`SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY position`), taskID)
	if err != nil {
		return nil, err
	}

	return &auth.TaskScope{Division: division, AssigneeIDs: assignees}, nil
}
