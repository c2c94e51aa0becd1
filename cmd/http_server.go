package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/task-dashboard/internal/auth"
	"github.com/frahmantamala/task-dashboard/internal/division"
	"github.com/frahmantamala/task-dashboard/internal/stats"
	"github.com/frahmantamala/task-dashboard/internal/transport"
	"github.com/frahmantamala/task-dashboard/internal/transport/rest"
	"github.com/frahmantamala/task-dashboard/internal/transport/swagger"
	"github.com/frahmantamala/task-dashboard/internal/user"
	"github.com/frahmantamala/task-dashboard/internal/workflow"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var specPath string

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().StringVar(&specPath, "spec", "api/openapi.yml", "OpenAPI document served at /openapi.yml")
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	router, err := setupRoutes(deps)
	if err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		deps.Close()
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	// WriteTimeout stays at the configured value; the task stream clears its
	// own deadline.
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	base := transport.NewBaseHandler(deps.Logger)

	spec, err := swagger.SpecHandler(context.Background(), specPath)
	if err != nil {
		return nil, err
	}

	health := rest.NewHealthHandler(map[string]rest.Checker{
		"database": deps.DB.PingContext,
		"storage":  deps.Avatars.Ping,
	})

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:         health,
		Auth:           auth.NewHandler(base, deps.Auth),
		RBAC:           auth.NewRBACAuthorization(deps.Policy, deps.TaskScope, deps.Logger),
		Users:          user.NewHandler(base, deps.Users, deps.Avatars.MaxBytes()),
		Divisions:      division.NewHandler(base, deps.Divisions),
		Tasks:          workflow.NewHandler(base, deps.Workflow),
		Stats:          stats.NewHandler(base, deps.Stats),
		Spec:           spec,
		AvatarFiles:    deps.Avatars,
		AvatarPrefix:   deps.Avatars.PathPrefix(),
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
	}, deps.Logger)

	return router, nil
}
