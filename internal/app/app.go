// Package app wires configuration into the services shared by syllabusd and
// the syllabus CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/syllabus/internal/api"
	"github.com/felixgeelhaar/syllabus/internal/catalog"
	"github.com/felixgeelhaar/syllabus/internal/config"
	"github.com/felixgeelhaar/syllabus/internal/grading"
	"github.com/felixgeelhaar/syllabus/internal/judge"
	"github.com/felixgeelhaar/syllabus/internal/mcp"
	"github.com/felixgeelhaar/syllabus/internal/metrics"
	"github.com/felixgeelhaar/syllabus/internal/progress"
	"github.com/felixgeelhaar/syllabus/internal/storage/local"
)

// App holds all application dependencies
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Stores   *Stores
	Metrics  *metrics.Metrics
	Judge    judge.Client
	Assets   *local.Store
	Engine   *progress.Engine
	Recorder *progress.Recorder
	Grader   *grading.Grader
	Importer *catalog.Importer

	queue   *Queue
	closers []func() error
}

// New opens storage and builds every service. Callers must Close the app.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New(nil)}

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Stores = stores
	a.closers = append(a.closers, func() error { stores.Close(); return nil })

	client, err := a.newJudge()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Judge = client

	assets, err := local.NewStore(cfg.AssetsDir())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open asset store: %w", err)
	}
	a.Assets = assets
	if !assets.Exists(grading.RunnerAsset) {
		logger.Warn("JUnit runner jar missing, multi-file grading will fail",
			"asset", grading.RunnerAsset,
			"dir", cfg.AssetsDir())
	}

	a.Engine = progress.NewEngine(stores.Courses, stores.Completions, logger)
	a.Recorder = progress.NewRecorder(a.Engine, stores.Completions, logger).WithObserver(a.Metrics)
	a.Grader = grading.NewGrader(stores.Assignments,
		grading.NewRunService(client, logger),
		grading.NewSubmitService(client, cfg.Grading.Concurrency, logger),
		grading.NewMultiFileService(client, assets, nil, logger),
		a.Metrics,
		logger)
	a.Importer = catalog.NewImporter(stores.Courses, stores.Assignments, logger)

	return a, nil
}

// newJudge builds the judge chain: backend, then resilience, then metrics.
func (a *App) newJudge() (judge.Client, error) {
	cfg := a.Config.Judge
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var base judge.Client
	switch cfg.Backend {
	case "docker":
		d, err := judge.NewDockerClient(judge.DockerConfig{
			Timeout:  timeout,
			MemoryMB: cfg.Docker.MemoryMB,
			CPULimit: cfg.Docker.CPULimit,
			Logger:   a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("docker judge: %w", err)
		}
		a.closers = append(a.closers, d.Close)
		base = d
	case "http", "":
		base = judge.NewHTTPClient(judge.HTTPConfig{
			BaseURL: cfg.URL,
			APIKey:  cfg.APIKey,
			Host:    cfg.Host,
			// wait=true holds the request until the program finishes
			Timeout: timeout + 30*time.Second,
			Logger:  a.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown judge backend %q", cfg.Backend)
	}

	rcfg := judge.DefaultResilientConfig()
	rcfg.EnableRetry = cfg.Retry
	if cfg.MaxConcurrent > 0 {
		rcfg.MaxConcurrent = cfg.MaxConcurrent
	}
	if cfg.RatePerSecond > 0 {
		rcfg.RatePerSecond = cfg.RatePerSecond
	}
	rcfg.Logger = a.Logger
	resilient := judge.NewResilient(base, rcfg)
	a.closers = append(a.closers, resilient.Close)

	a.Logger.Info("judge ready", "backend", cfg.Backend, "retry", cfg.Retry)
	return judge.NewInstrumented(resilient, a.Metrics, a.Logger), nil
}

// Handler builds the HTTP API over the app's services.
func (a *App) Handler() http.Handler {
	svc := api.Services{
		Engine:      a.Engine,
		Recorder:    a.Recorder,
		Grader:      a.Grader,
		Assignments: a.Stores.Assignments,
		Metrics:     a.Metrics,
		Ready:       a.Ready,
	}
	if a.queue != nil {
		svc.Jobs = a.queue.Producer
		svc.Results = a.queue.Results
	}

	return api.NewRouter(svc, api.RouterConfig{
		RequestTimeout:     time.Duration(a.Config.Server.RequestTimeoutSeconds) * time.Second,
		RateLimitPerMinute: a.Config.Server.RateLimitPerMinute,
		AllowedOrigins:     a.Config.Server.AllowedOrigins,
	})
}

// MCPServer builds the MCP tool server over the app's services.
func (a *App) MCPServer(version string) *mcp.Server {
	return mcp.NewServer(mcp.Config{
		Version:     version,
		Engine:      a.Engine,
		Recorder:    a.Recorder,
		Grader:      a.Grader,
		Assignments: a.Stores.Assignments,
	})
}

// Ready reports whether storage, and the queue when started, are reachable.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Stores.Ping(ctx); err != nil {
		return err
	}
	if a.queue != nil {
		return a.queue.ready()
	}
	return nil
}

// Close releases everything New and StartQueue acquired, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
