package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/task-dashboard/internal/auth"
	"github.com/frahmantamala/task-dashboard/internal/division"
	"github.com/frahmantamala/task-dashboard/internal/stats"
	"github.com/frahmantamala/task-dashboard/internal/transport/middleware"
	"github.com/frahmantamala/task-dashboard/internal/transport/swagger"
	"github.com/frahmantamala/task-dashboard/internal/user"
	"github.com/frahmantamala/task-dashboard/internal/workflow"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups everything the router mounts. Nil handlers leave their
// routes unregistered.
type Handlers struct {
	Health    *HealthHandler
	Auth      *auth.Handler
	RBAC      *auth.RBACAuthorization
	Users     *user.Handler
	Divisions *division.Handler
	Tasks     *workflow.Handler
	Stats     *stats.Handler

	// Spec serves the validated OpenAPI document.
	Spec http.Handler
	// AvatarFiles serves stored avatars below AvatarPrefix.
	AvatarFiles  http.Handler
	AvatarPrefix string

	AllowedOrigins string
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, logger *slog.Logger) {
	router.Use(middleware.CORS(h.AllowedOrigins))
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	if h.Spec != nil {
		router.Method(http.MethodGet, swagger.SpecURL, h.Spec)
		router.Handle("/swagger/*", swagger.Handler())
	}

	if h.AvatarFiles != nil && h.AvatarPrefix != "" {
		router.Handle(h.AvatarPrefix+"*", http.StripPrefix(h.AvatarPrefix, h.AvatarFiles))
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
			sr.With(h.Auth.AuthMiddleware).Get("/session", h.Auth.GetSession)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)
			pr.Use(h.RBAC.RequireDirectoryRecord())

			if h.Users != nil {
				pr.Route("/users", func(ur chi.Router) {
					ur.Get("/", h.Users.ListUsers)
					ur.With(h.RBAC.RequireAdmin()).Post("/", h.Users.CreateUser)
					ur.Get("/{id}", h.Users.GetUser)
					ur.Patch("/{id}", h.Users.UpdateUser)
					ur.With(h.RBAC.RequireAdmin()).Delete("/{id}", h.Users.DeleteUser)
					ur.Post("/{id}/avatar", h.Users.UploadAvatar)
				})
			}

			if h.Divisions != nil {
				pr.Route("/divisions", func(dr chi.Router) {
					dr.Get("/", h.Divisions.ListDivisions)
					dr.With(h.RBAC.RequireAdmin()).Post("/", h.Divisions.CreateDivision)

					if h.Tasks != nil {
						dr.Group(func(sr chi.Router) {
							sr.Use(h.RBAC.RequireDivisionAccess("name"))
							sr.Get("/{name}/tasks", h.Tasks.ListDivisionTasks)
							sr.Get("/{name}/tasks/stream", h.Tasks.StreamDivisionTasks)
							sr.Get("/{name}/deadlines", h.Tasks.Deadlines)
							sr.Get("/{name}/calendar", h.Tasks.Calendar)
						})
					}
				})
			}

			if h.Tasks != nil {
				pr.Route("/tasks", func(tr chi.Router) {
					tr.With(h.RBAC.RequireTaskCreator()).Post("/", h.Tasks.CreateTask)
					// The controller checks confirmation before the task lookup
					// and authorizes the delete itself.
					tr.Delete("/{id}", h.Tasks.DeleteTask)

					tr.Group(func(sr chi.Router) {
						sr.Use(h.RBAC.RequireTaskAccess("id"))
						sr.Get("/{id}", h.Tasks.GetTask)
						sr.Patch("/{id}", h.Tasks.UpdateTask)
						sr.Patch("/{id}/status", h.Tasks.UpdateTaskStatus)
						sr.Get("/{id}/comments", h.Tasks.ListComments)
						sr.Post("/{id}/comments", h.Tasks.AddComment)
					})
				})
			}

			pr.Route("/admin", func(ar chi.Router) {
				ar.Use(h.RBAC.RequireAdmin())
				if h.Stats != nil {
					ar.Get("/stats", h.Stats.GetDashboard)
				}
				if h.Users != nil {
					ar.Post("/provisioning/reconcile", h.Users.ReconcileProvisioning)
				}
			})
		})
	})
}
