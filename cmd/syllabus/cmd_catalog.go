package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/syllabus/internal/app"
	"github.com/felixgeelhaar/syllabus/internal/catalog"
	"github.com/felixgeelhaar/syllabus/internal/config"
)

// loadConfig reads the operator's configuration and prepares the data dir.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("SYLLABUS_CONFIG")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger keeps stdout clean for command output.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// cmdImport loads a course pack and writes it into the configured store.
func cmdImport(out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: syllabus import <pack.yaml>")
	}

	pack, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg, cliLogger())
	if err != nil {
		return err
	}
	defer stores.Close()

	sum, err := catalog.NewImporter(stores.Courses, stores.Assignments, cliLogger()).Import(ctx, pack)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %q (course %d)\n", pack.Course.Slug, sum.CourseID)
	fmt.Fprintf(out, "  Chapters:    %d\n", sum.Chapters)
	fmt.Fprintf(out, "  Lessons:     %d\n", sum.Lessons)
	fmt.Fprintf(out, "  Assignments: %d\n", sum.Assignments)
	fmt.Fprintf(out, "  Test cases:  %d\n", sum.TestCases)
	return nil
}

// cmdMigrate applies migrations by opening the configured store.
func cmdMigrate(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stores, err := app.OpenStores(context.Background(), cfg, cliLogger())
	if err != nil {
		return err
	}
	stores.Close()

	fmt.Fprintf(out, "%s schema is up to date\n", stores.Driver)
	return nil
}
