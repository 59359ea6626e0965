// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/graphexec/internal/api"
	"github.com/tombee/graphexec/internal/config"
	"github.com/tombee/graphexec/internal/log"
	"github.com/tombee/graphexec/internal/tracing"
	"github.com/tombee/graphexec/internal/watcher"
	"github.com/tombee/graphexec/pkg/engine"
	"github.com/tombee/graphexec/pkg/graph"
	"github.com/tombee/graphexec/pkg/tools"
	"github.com/tombee/graphexec/pkg/tools/builtin"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		addr        = flag.String("addr", "", "HTTP listen address")
		graphsDir   = flag.String("graphs-dir", "", "Directory of graph definition files")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("graphexecd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *graphsDir != "" {
		cfg.Engine.GraphsDir = *graphsDir
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = log.Format(cfg.Log.Format)
	logger := log.New(logCfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("graphexecd exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing {
		provider, err := tracing.Init("graphexecd", version)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Warn("tracing shutdown failed", slog.Any("error", err))
			}
		}()
	}

	registry := tools.NewRegistry()
	builtin.Register(registry)

	eng := engine.New(graph.NewMemoryStore(), registry,
		engine.WithLogger(logger),
		engine.WithSubscriberBuffer(cfg.Engine.SubscriberBuffer),
	)

	// The builtin review graph ships registered; the graphs dir can override
	// it by id.
	if err := eng.RegisterGraph(builtin.ReviewGraph()); err != nil {
		return fmt.Errorf("failed to register builtin graph: %w", err)
	}

	if cfg.Engine.GraphsDir != "" {
		graphs, err := graph.LoadDir(cfg.Engine.GraphsDir)
		if err != nil {
			return fmt.Errorf("failed to load graphs from %s: %w", cfg.Engine.GraphsDir, err)
		}
		for _, g := range graphs {
			if err := eng.RegisterGraph(g.Definition()); err != nil {
				return fmt.Errorf("failed to register graph %s: %w", g.ID, err)
			}
			logger.Info("graph loaded", "graph_id", g.ID)
		}

		w, err := watcher.New(cfg.Engine.GraphsDir, eng, log.WithComponent(logger, "watcher"))
		if err != nil {
			logger.Warn("graph hot-reload disabled", slog.Any("error", err))
		} else {
			defer w.Close()
			w.Start(ctx)
		}
	}

	router := api.NewRouter(eng,
		api.WithLogger(log.WithComponent(logger, "api")),
		api.WithHeartbeat(cfg.Server.HeartbeatInterval),
	)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("graphexecd listening", "addr", cfg.Server.Addr, "version", version)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return <-errCh
}
