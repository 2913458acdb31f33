// Package cli implements the concord command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/annolab/concord/internal/config"
	"github.com/annolab/concord/internal/domain/annotation"
	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/task"
	"github.com/annolab/concord/internal/metrics"
	"github.com/annolab/concord/internal/sqlite"
)

// app bundles the wired services behind every command.
type app struct {
	cfg         config.Config
	db          *sqlite.DB
	logger      *slog.Logger
	metrics     *metrics.Metrics
	annotations *annotation.Service
	rounds      *round.Service
	tasks       *task.Service
}

// newApp loads configuration, opens the database, and wires the domain
// services. Callers must Close when done.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("failed to prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	records := sqlite.NewAnnotationRepository(db)
	audit := sqlite.NewAuditRepository(db)
	roundRepo := sqlite.NewRoundRepository(db)
	taskRepo := sqlite.NewTaskRepository(db)
	cache := sqlite.NewScoreCacheRepository(db)

	m := metrics.New()

	return &app{
		cfg:         cfg,
		db:          db,
		logger:      logger,
		metrics:     m,
		annotations: annotation.NewService(db, records, audit, logger),
		rounds:      round.NewService(db, records, roundRepo, taskRepo, cache, m, cfg.Rounds.Quorum, logger),
		tasks:       task.NewService(db, taskRepo, roundRepo, records, audit, cache, m, logger),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
