package postgres

import (
	"context"

	"github.com/frahmantamala/task-dashboard/internal/stats"
	"github.com/jmoiron/sqlx"
)

// StatsRepository is a read-only view over the directory and task tables.
type StatsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) stats.RepositoryAPI {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

func (r *StatsRepository) CountUsersByRole(ctx context.Context) ([]stats.Count, error) {
	var counts []stats.Count
	err := r.db.SelectContext(ctx, &counts,
		`SELECT role AS bucket, COUNT(*) AS total FROM users GROUP BY role ORDER BY role`)
	return counts, err
}

func (r *StatsRepository) CountDivisions(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM divisions`)
	return n, err
}

func (r *StatsRepository) CountTasksByStatus(ctx context.Context) ([]stats.Count, error) {
	var counts []stats.Count
	err := r.db.SelectContext(ctx, &counts,
		`SELECT status AS bucket, COUNT(*) AS total FROM tasks GROUP BY status ORDER BY status`)
	return counts, err
}

func (r *StatsRepository) RecentUsers(ctx context.Context, limit int) ([]stats.RecentUser, error) {
	var users []stats.RecentUser
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`
		SELECT id, name, email, role, COALESCE(division, '') AS division, joined_at
		FROM users
		ORDER BY joined_at DESC, id
		LIMIT ?`), limit)
	return users, err
}
