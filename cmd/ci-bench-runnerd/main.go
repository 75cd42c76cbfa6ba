// Command ci-bench-runnerd is the bench runner's process entrypoint: it
// loads configuration, wires the app, starts the dispatcher loop, and
// serves a minimal health/version endpoint. The webhook HTTP receiver
// itself is an out-of-scope collaborator (§1); this binary only drains the
// durable queue that receiver is assumed to populate via App.Queue.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aochagavia/ci-bench-runner/internal/app"
	"github.com/aochagavia/ci-bench-runner/internal/common"
)

func main() {
	configPath := os.Getenv("CIBENCH_CONFIG")

	a, err := app.NewApp(configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	a.Start()

	mux := buildMux(a)

	host := a.Config.Server.Host
	port := a.Config.Server.Port

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		a.Logger.Info().Int("port", port).Msg("starting health server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal().Err(err).Msg("health server failed")
		}
	}()

	a.Logger.Info().
		Str("repo", a.Config.GitHubRepoOwner+"/"+a.Config.GitHubRepoName).
		Msg("ci-bench-runnerd ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(a.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("health server shutdown failed")
	}

	a.Close()
	a.Logger.Info().Msg("ci-bench-runnerd stopped")
}

// buildMux creates the HTTP mux with the health and version endpoints. No
// webhook routes live here; the receiver is an injected external collaborator.
func buildMux(a *app.App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", healthHandler(a))
	mux.HandleFunc("/api/version", versionHandler)
	return mux
}

// healthHandler responds with the number of queued events. It does not check
// whether the dispatcher loop is still running.
func healthHandler(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		n, err := a.Storage.QueuedEventCount(r.Context())
		if err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "queued_events": n})
	}
}

// versionHandler responds to GET/HEAD /api/version with version info.
func versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
