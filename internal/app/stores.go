package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/syllabus/internal/config"
	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/storage/postgres"
	"github.com/felixgeelhaar/syllabus/internal/storage/sqlite"
)

// CourseStore is the full course repository used by the daemon and importer.
type CourseStore interface {
	domain.CourseReader
	domain.CourseWriter
	CourseIDBySlug(ctx context.Context, slug string) (int64, error)
}

// AssignmentStore reads and writes assignments.
type AssignmentStore interface {
	domain.AssignmentReader
	domain.AssignmentWriter
}

// Stores groups the repositories of one storage backend.
type Stores struct {
	Driver      string
	Courses     CourseStore
	Completions domain.CompletionStore
	Assignments AssignmentStore

	ping  func(ctx context.Context) error
	close func()
}

// OpenStores connects the configured backend and applies migrations.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("storage ready", "driver", "postgres")
		return &Stores{
			Driver:      "postgres",
			Courses:     postgres.NewCourseStore(pool),
			Completions: postgres.NewCompletionStore(pool),
			Assignments: postgres.NewAssignmentStore(pool),
			ping:        pool.Ping,
			close:       pool.Close,
		}, nil

	case "sqlite", "":
		path := cfg.SQLiteFile()
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.Info("storage ready", "driver", "sqlite", "path", path)
		return &Stores{
			Driver:      "sqlite",
			Courses:     sqlite.NewCourseStore(db),
			Completions: sqlite.NewCompletionStore(db),
			Assignments: sqlite.NewAssignmentStore(db),
			ping:        db.PingContext,
			close:       func() { db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Ping checks the backend is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if err := s.ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", s.Driver, err)
	}
	return nil
}

// Close releases the backend connections.
func (s *Stores) Close() {
	s.close()
}
