package stats

import (
	"time"
)

// Count is one GROUP BY bucket.
type Count struct {
	Key   string `db:"bucket"`
	Count int    `db:"total"`
}

type RecentUser struct {
	ID       string    `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Email    string    `db:"email" json:"email"`
	Role     string    `db:"role" json:"role"`
	Division string    `db:"division" json:"division"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	TotalUsers    int            `json:"total_users"`
	UsersByRole   map[string]int `json:"users_by_role"`
	Divisions     int            `json:"divisions"`
	TotalTasks    int            `json:"total_tasks"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
	RecentUsers   []RecentUser   `json:"recent_users"`
}
