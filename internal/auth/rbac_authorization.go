package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/task-dashboard/internal"
	coreuser "github.com/frahmantamala/task-dashboard/internal/core/user"
	"github.com/frahmantamala/task-dashboard/internal/transport"
	"github.com/go-chi/chi"
)

// TaskScopeReader loads the division and assignees of a task.
// It returns (nil, nil) when the task does not exist.
type TaskScopeReader interface {
	TaskScope(ctx context.Context, taskID string) (*TaskScope, error)
}

// RBACAuthorization turns Policy decisions into route middleware.
type RBACAuthorization struct {
	*transport.BaseHandler
	policy *Policy
	tasks  TaskScopeReader
	logger *slog.Logger
}

func NewRBACAuthorization(policy *Policy, tasks TaskScopeReader, logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		policy:      policy,
		tasks:       tasks,
		logger:      logger,
	}
}

func (ra *RBACAuthorization) guard(check func(r *http.Request, p *coreuser.Principal) (bool, error), action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				ra.logger.WarnContext(r.Context(), "authorization check failed: principal not found in context")
				ra.HandleServiceError(w, r, internal.ErrInvalidToken)
				return
			}

			allowed, err := check(r, p)
			if err != nil {
				ra.HandleServiceError(w, r, err)
				return
			}

			if !allowed {
				ra.logger.WarnContext(r.Context(), "access denied",
					"user_id", p.ID,
					"role", p.Role,
					"division", p.Division,
					"action", action)
				ra.HandleServiceError(w, r, internal.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireDirectoryRecord rejects identities that were never written to the directory.
func (ra *RBACAuthorization) RequireDirectoryRecord() func(http.Handler) http.Handler {
	return ra.guard(func(_ *http.Request, p *coreuser.Principal) (bool, error) {
		return p.HasDirectoryRecord(), nil
	}, "directory_member")
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.guard(func(_ *http.Request, p *coreuser.Principal) (bool, error) {
		return ra.policy.CanManageDirectory(p), nil
	}, "admin")
}

func (ra *RBACAuthorization) RequireTaskCreator() func(http.Handler) http.Handler {
	return ra.guard(func(_ *http.Request, p *coreuser.Principal) (bool, error) {
		return ra.policy.CanCreateAnyTask(p), nil
	}, "create_task")
}

// RequireDivisionAccess checks the division named by the URL parameter.
func (ra *RBACAuthorization) RequireDivisionAccess(param string) func(http.Handler) http.Handler {
	return ra.guard(func(r *http.Request, p *coreuser.Principal) (bool, error) {
		return ra.policy.CanViewDivision(p, chi.URLParam(r, param)), nil
	}, "view_division")
}

// RequireTaskAccess checks that the task named by the URL parameter exists
// and lies in a division the principal can see.
func (ra *RBACAuthorization) RequireTaskAccess(param string) func(http.Handler) http.Handler {
	return ra.guard(func(r *http.Request, p *coreuser.Principal) (bool, error) {
		scope, err := ra.tasks.TaskScope(r.Context(), chi.URLParam(r, param))
		if err != nil {
			return false, internal.NewTransportError("failed to load task scope", err)
		}
		if scope == nil {
			return false, internal.ErrTaskNotFound
		}
		return ra.policy.CanViewTask(p, *scope), nil
	}, "view_task")
}
