package stats

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/task"
)

const RecentUsersLimit = 5

type RepositoryAPI interface {
	CountUsers(ctx context.Context) (int, error)
	CountUsersByRole(ctx context.Context) ([]Count, error)
	CountDivisions(ctx context.Context) (int, error)
	CountTasksByStatus(ctx context.Context) ([]Count, error)
	RecentUsers(ctx context.Context, limit int) ([]RecentUser, error)
}

type Service struct {
	repo   RepositoryAPI
	policy *auth.Policy
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: auth.NewPolicy(),
		logger: logger,
	}
}

// Dashboard gathers the admin counters. Every role and canonical status is
// present, zero when empty; stored legacy statuses count toward their
// canonical value.
func (s *Service) Dashboard(ctx context.Context, actor *coreuser.Principal) (*Dashboard, error) {
	if err := auth.Require(s.policy.CanManageDirectory(actor)); err != nil {
		return nil, err
	}

	d := &Dashboard{
		UsersByRole:   make(map[string]int),
		TasksByStatus: make(map[string]int),
	}
	for _, r := range coreuser.ValidRoles() {
		d.UsersByRole[string(r)] = 0
	}
	for _, st := range task.AllStatuses() {
		d.TasksByStatus[string(st)] = 0
	}

	var err error
	if d.TotalUsers, err = s.repo.CountUsers(ctx); err != nil {
		return nil, internal.NewTransportError("failed to count users", err)
	}

	roles, err := s.repo.CountUsersByRole(ctx)
	if err != nil {
		return nil, internal.NewTransportError("failed to count users by role", err)
	}
	for _, c := range roles {
		key := c.Key
		if r, err := coreuser.ParseRole(c.Key); err == nil {
			key = string(r)
		}
		d.UsersByRole[key] += c.Count
	}

	if d.Divisions, err = s.repo.CountDivisions(ctx); err != nil {
		return nil, internal.NewTransportError("failed to count divisions", err)
	}

	statuses, err := s.repo.CountTasksByStatus(ctx)
	if err != nil {
		return nil, internal.NewTransportError("failed to count tasks", err)
	}
	for _, c := range statuses {
		key := c.Key
		if st, err := task.ParseStatus(c.Key); err == nil {
			key = string(st)
		} else {
			s.logger.WarnContext(ctx, "unknown task status in store", "status", c.Key, "count", c.Count)
		}
		d.TasksByStatus[key] += c.Count
		d.TotalTasks += c.Count
	}

	if d.RecentUsers, err = s.repo.RecentUsers(ctx, RecentUsersLimit); err != nil {
		return nil, internal.NewTransportError("failed to load recent users", err)
	}
	if d.RecentUsers == nil {
		d.RecentUsers = []RecentUser{}
	}
	return d, nil
}
