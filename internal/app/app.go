// Package app wires together the config, logger, store, event queue,
// dispatcher, and outbound collaborators into one runnable process.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/benchpipeline"
	"github.com/aochagavia/ci-bench-runner/internal/benchrunner"
	"github.com/aochagavia/ci-bench-runner/internal/common"
	"github.com/aochagavia/ci-bench-runner/internal/dispatcher"
	"github.com/aochagavia/ci-bench-runner/internal/eventqueue"
	"github.com/aochagavia/ci-bench-runner/internal/ghclient"
	"github.com/aochagavia/ci-bench-runner/internal/handlers"
	"github.com/aochagavia/ci-bench-runner/internal/interfaces"
	"github.com/aochagavia/ci-bench-runner/internal/models"
	"github.com/aochagavia/ci-bench-runner/internal/storage"
)

// App holds all initialized components and configuration. It is the shared
// core used by cmd/ci-bench-runnerd.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage *storage.Store
	Queue   *eventqueue.Queue
	GitHub  *ghclient.Client

	Dispatcher  *dispatcher.Dispatcher
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes config, logging, storage, the event queue, the GitHub
// client, the Bench Pipeline, the event handlers, and the dispatcher. runner
// is the injected benchmark-harness collaborator (§1 treats the harness
// itself as an out-of-scope subprocess); pass nil to use the production
// benchrunner.ShellRunner built from config.
func NewApp(configPath string, runner interfaces.BenchRunner) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("CIBENCH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "ci-bench-runner.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/ci-bench-runner.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.DataDir != "" && !filepath.IsAbs(config.DataDir) {
		config.DataDir = filepath.Join(binDir, config.DataDir)
	}

	logger := common.NewLogger(config.Logging.Level)

	ctx := context.Background()
	store, err := storage.Open(ctx, logger, filepath.Join(config.DataDir, "ci-bench-runner.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	queue := eventqueue.New(store, logger)

	githubClient := ghclient.NewClient(config.GitHubToken, config.GitHubRepoOwner, config.GitHubRepoName,
		ghclient.WithLogger(logger),
		ghclient.WithRateLimit(ghclient.DefaultRateLimit),
	)

	if runner == nil {
		runner = benchrunner.NewShellRunner(config.HarnessScript)
	}

	workDir := filepath.Join(config.DataDir, "jobs")
	pipeline := benchpipeline.New(store, runner, githubClient, logger, config.AppBaseURL, workDir)

	h := handlers.New(githubClient, pipeline, config, logger)
	registry := map[models.EventKind]dispatcher.HandlerFunc{
		models.EventKindIssueComment:      h.HandleIssueComment,
		models.EventKindPullRequestReview: h.HandlePullRequestReview,
		models.EventKindPullRequest:       h.HandlePullRequestUpdate,
	}

	d := dispatcher.New(store, queue, logger, registry)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     store,
		Queue:       queue,
		GitHub:      githubClient,
		Dispatcher:  d,
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("app initialized")
	return a, nil
}

// Start launches the dispatcher loop.
func (a *App) Start() {
	a.Dispatcher.Start()
}

// Close stops the dispatcher and releases storage resources.
func (a *App) Close() {
	if a.Dispatcher != nil {
		a.Dispatcher.Stop()
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
