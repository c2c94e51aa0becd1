package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/task-dashboard/internal"
	"github.com/frahmantamala/task-dashboard/internal/auth"
	authPostgres "github.com/frahmantamala/task-dashboard/internal/auth/postgres"
	"github.com/frahmantamala/task-dashboard/internal/core/events"
	"github.com/frahmantamala/task-dashboard/internal/division"
	divisionPostgres "github.com/frahmantamala/task-dashboard/internal/division/postgres"
	"github.com/frahmantamala/task-dashboard/internal/emailgateway"
	"github.com/frahmantamala/task-dashboard/internal/notification"
	"github.com/frahmantamala/task-dashboard/internal/stats"
	statsPostgres "github.com/frahmantamala/task-dashboard/internal/stats/postgres"
	"github.com/frahmantamala/task-dashboard/internal/storage"
	"github.com/frahmantamala/task-dashboard/internal/task"
	taskPostgres "github.com/frahmantamala/task-dashboard/internal/task/postgres"
	"github.com/frahmantamala/task-dashboard/internal/user"
	userPostgres "github.com/frahmantamala/task-dashboard/internal/user/postgres"
	"github.com/frahmantamala/task-dashboard/internal/workflow"
	"github.com/frahmantamala/task-dashboard/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Logger *slog.Logger

	Bus       *events.EventBus
	Policy    *auth.Policy
	Auth      *auth.Service
	Users     *user.Service
	Divisions *division.Service
	Tasks     *task.Service
	Feed      *task.Feed
	Notifier  *notification.Dispatcher
	Workflow  *workflow.Controller
	Stats     *stats.Service
	Avatars   *storage.AvatarStore
	TaskScope auth.TaskScopeReader
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	avatars, err := storage.NewAvatarStore(context.Background(), config.Storage, lg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize avatar store: %w", err)
	}

	bus := events.NewEventBus(lg)

	tokens := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authSvc := auth.NewService(authPostgres.NewIdentityRepository(gormDB), tokens, config.Security.BCryptCost, lg)

	divisionSvc := division.NewService(divisionPostgres.NewDivisionRepository(gormDB), lg)

	userSvc := user.NewService(user.Dependencies{
		Users:         userPostgres.NewUserRepository(gormDB),
		Provisionings: userPostgres.NewProvisioningRepository(gormDB),
		Identities:    authSvc,
		Divisions:     divisionSvc,
		Avatars:       avatars,
	}, config.Directory, lg)
	authSvc.SetDirectory(userSvc)

	taskSvc := task.NewService(taskPostgres.NewTaskRepository(gormDB), bus, lg)
	feed := task.NewFeed(taskSvc, bus, lg)

	var sender notification.Sender
	if config.Notification.Enabled {
		sender = emailgateway.NewClient(emailgateway.Config{
			BaseURL:     config.Notification.BaseURL,
			ServiceID:   config.Notification.ServiceID,
			TemplateID:  config.Notification.TemplateID,
			PublicKey:   config.Notification.PublicKey,
			AccessToken: config.Notification.AccessToken,
			Timeout:     config.Notification.Timeout,
		}, lg)
	}
	notifier := notification.NewDispatcher(sender, config.Notification, lg)

	controller := workflow.NewController(workflow.Dependencies{
		Tasks:     taskSvc,
		Directory: userSvc,
		Divisions: divisionSvc,
		Notifier:  notifier,
		Feed:      feed,
	}, lg)

	return &Dependencies{
		Config:    config,
		DB:        db,
		Gorm:      gormDB,
		Logger:    lg,
		Bus:       bus,
		Policy:    auth.NewPolicy(),
		Auth:      authSvc,
		Users:     userSvc,
		Divisions: divisionSvc,
		Tasks:     taskSvc,
		Feed:      feed,
		Notifier:  notifier,
		Workflow:  controller,
		Stats:     stats.NewService(statsPostgres.NewStatsRepository(db), lg),
		Avatars:   avatars,
		TaskScope: authPostgres.NewTaskScopeRepository(db),
	}, nil
}

// Close drains pending event handlers before releasing the bucket and pool.
func (d *Dependencies) Close() {
	d.Bus.Wait()
	if err := d.Avatars.Close(); err != nil {
		d.Logger.Error("avatar bucket close error", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
