package flowline

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/opskit/flowline/internal/config"
	"github.com/opskit/flowline/internal/controllers"
	"github.com/opskit/flowline/internal/core"
	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/engine"
	"github.com/opskit/flowline/internal/migrations"
	"github.com/opskit/flowline/internal/repository"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Start boots the automation engine and HTTP server. Messenger and Notifier
// are the caller's outbound integrations; passing nil installs log-only
// stand-ins, useful for local runs. This call blocks until the HTTP server
// stops.
func Start(mux *http.ServeMux, messenger engine.Messenger, notifier engine.Notifier) error {

	databaseType := config.GetSystemSettingString(config.DATABASE_TYPE)
	if databaseType == "" || (databaseType != config.DATABASE_TYPE_POSTGRES && databaseType != config.DATABASE_TYPE_MYSQL && databaseType != config.DATABASE_TYPE_SQLLITE) {
		panic("FLOWLINE_DATABASE_TYPE must be set to one of the following values: POSTGRES, MYSQL, SQLLITE")
	}

	var db *sql.DB
	if databaseType == config.DATABASE_TYPE_POSTGRES {
		db = setupPostgresDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_SQLLITE {
		db = setupSqlLiteDatabase()
		defer db.Close()
	}
	if databaseType == config.DATABASE_TYPE_MYSQL {
		db = setupMysqlDatabase()
		defer db.Close()
	}

	clock := core.NewRealClock()
	workflowRepo := repository.NewWorkflowRepository(db, clock)
	stepRepo := repository.NewStepRepository(db)
	runRepo := repository.NewRunRepository(db, clock)
	execRepo := repository.NewStepExecutionRepository(db, clock)
	approvalRepo := repository.NewApprovalRepository(db, clock)
	integrityRepo := repository.NewIntegrityRepository(db)
	userRepo := repository.NewUserRepository(db)

	if messenger == nil {
		messenger = &logMessenger{}
	}
	if notifier == nil {
		notifier = &logNotifier{}
	}

	interval, _ := time.ParseDuration(config.GetSystemSettingString(config.SCHEDULER_INTERVAL))
	batchSize := config.GetSystemSettingInteger(config.SCHEDULER_BATCH_SIZE)
	maxSendAttempts := config.GetSystemSettingInteger(config.SEND_MAX_ATTEMPTS)

	executor := engine.NewStepExecutor(messenger, approvalRepo, notifier, clock, maxSendAttempts)
	scheduler := &schedulerHandle{}
	coordinator := engine.NewCoordinator(stepRepo, runRepo, execRepo, approvalRepo, executor, scheduler, clock)
	gate := engine.NewApprovalGate(approvalRepo, runRepo, execRepo, coordinator)
	matcher := engine.NewTriggerMatcher(workflowRepo)
	dispatcher := engine.NewDispatcher(matcher, coordinator)
	scheduler.Scheduler = engine.NewScheduler(runRepo, approvalRepo, coordinator, gate, clock, interval, batchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)

	if mux == nil {
		mux = http.NewServeMux()
	}
	eventsController := controllers.NewEventsController(dispatcher, userRepo)
	eventsController.RegisterRoutes(mux)
	workflowsController := controllers.NewWorkflowsController(workflowRepo, stepRepo, integrityRepo, userRepo)
	workflowsController.RegisterRoutes(mux)
	runsController := controllers.NewRunsController(runRepo, execRepo, coordinator, userRepo,
		config.GetSystemSettingInteger(config.RUNS_DEFAULT_PAGE_SIZE))
	runsController.RegisterRoutes(mux)
	approvalsController := controllers.NewApprovalsController(approvalRepo, gate, userRepo)
	approvalsController.RegisterRoutes(mux)

	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

// schedulerHandle breaks the construction cycle between the coordinator,
// which needs a Timer, and the scheduler, which needs the coordinator.
type schedulerHandle struct {
	*engine.Scheduler
}

type logMessenger struct{}

func (m *logMessenger) Send(ctx context.Context, channel string, recipient string, subject string, body string) error {
	slog.InfoContext(ctx, "Outbound message", "channel", channel, "recipient", recipient, "subject", subject)
	return nil
}

type logNotifier struct{}

func (n *logNotifier) NotifyApprovalRequested(ctx context.Context, approval *domain.Approval, run *domain.Run) error {
	slog.InfoContext(ctx, "Approval requested", "approvalId", approval.ID, "runId", run.ID, "approvers", approval.ApproverGroup)
	return nil
}

func setupPostgresDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("FLOWLINE_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("postgres", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening Postgres database")
	dbPostgres, err := sql.Open("postgres", dbURL)
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbPostgres
}

func setupSqlLiteDatabase() *sql.DB {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		panic("FLOWLINE_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	dbURL := "sqlite3://" + fileName
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("sqllite3", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening SQLite database")
	dbSqlLite, err := sql.Open("sqlite3", fileName)
	if err != nil {
		log.Fatalf("Failed to open SQLite DB: %v", err)
	}
	if err := dbSqlLite.Ping(); err != nil {
		log.Fatalf("Failed to ping SQLite DB: %v", err)
	}
	return dbSqlLite
}

func setupMysqlDatabase() *sql.DB {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		panic("FLOWLINE_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		panic("FLOWLINE_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		panic("FLOWLINE_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database", "url", dbURL)
	slog.Info("Running migrations")
	if err := runMigrationsFromEmbed("mysql", dbURL); err != nil {
		slog.Error("DB migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Opening MySQL database")
	dbMysql, err := sql.Open("mysql", strings.Replace(dbURL, "mysql://", "", 1))
	if err != nil {
		slog.Error("DB connection failed", "error", err)
		os.Exit(1)
	}
	return dbMysql
}

func runMigrationsFromEmbed(migrationsPath string, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, migrationsPath)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func SetupLogger() {
	w := os.Stderr
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
