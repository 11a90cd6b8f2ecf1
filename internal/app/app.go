// Package app wires configuration, persistence and the import services into
// runnable units for the commands under cmd/.
package app

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/league-import/external/feed"
	"github.com/riskibarqy/league-import/internal/backup"
	"github.com/riskibarqy/league-import/internal/check"
	"github.com/riskibarqy/league-import/internal/config"
	"github.com/riskibarqy/league-import/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/league-import/internal/plan"
	"github.com/riskibarqy/league-import/internal/platform/logging"
	"github.com/riskibarqy/league-import/internal/report"
	"github.com/riskibarqy/league-import/internal/usecase"
)

type App struct {
	Config     config.Config
	Logger     *logging.Logger
	DB         *sqlx.DB
	Store      *postgres.Store
	Backups    *backup.Manager
	Reports    *report.Emitter
	Importer   *usecase.ImportService
	Reconciler *usecase.ReconcileService
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewJSON(cfg.LogLevel)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	store := postgres.NewStore(db, logger)
	loader := feed.NewLoader(cfg.SourceDir, cfg.FeedMaxWorkers, logger)
	backups := backup.NewManager(cfg.BackupDir, cfg.BackupRetain, logger)
	reports := report.NewEmitter(cfg.ReportDir, cfg.ReportRetain, logger)

	importer := usecase.NewImportService(
		store,
		loader,
		plan.NewPlanner(logger),
		check.NewChecker(),
		backups,
		reports,
		logger,
	)
	reconciler := usecase.NewReconcileService(store, reports, logger)

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Store:      store,
		Backups:    backups,
		Reports:    reports,
		Importer:   importer,
		Reconciler: reconciler,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	dbURL := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)

	db, err := otelsqlx.Open("postgres", dbURL,
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(dbURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
