package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/forgeworks/forge-coordinator/internal/bus"
	"github.com/forgeworks/forge-coordinator/internal/config"
	"github.com/forgeworks/forge-coordinator/internal/health"
	"github.com/forgeworks/forge-coordinator/internal/hub"
	"github.com/forgeworks/forge-coordinator/internal/logging"
	"github.com/forgeworks/forge-coordinator/internal/policy"
	"github.com/forgeworks/forge-coordinator/internal/provider"
	"github.com/forgeworks/forge-coordinator/internal/router"
	"github.com/forgeworks/forge-coordinator/internal/scheduler"
	"github.com/forgeworks/forge-coordinator/internal/server"
	"github.com/forgeworks/forge-coordinator/internal/store"
	"github.com/forgeworks/forge-coordinator/internal/usage"
	"github.com/forgeworks/forge-coordinator/internal/workflow"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	flag.Parse()

	// .env is optional; real env vars win either way
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logging.Logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	logging.Configure(cfg.Logging.Level, cfg.Logging.Format)
	logger := logging.WithComponent("main")
	logger.Info("Starting forge-coordinator", "version", version)

	// Durable store
	st, err := store.Open(cfg.Usage.DBPath)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Usage ledger, warmed from persisted counters
	ledger := usage.New(&cfg.Usage, st, logging.WithComponent("usage"))
	ctx := context.Background()
	if rows, err := st.UsageRows(ctx); err != nil {
		logger.Error("Failed to load persisted usage", "error", err)
	} else {
		ledger.Warm(rows)
	}

	// Candidate tables
	table, err := policy.New(&cfg.Routing)
	if err != nil {
		logger.Error("Invalid routing tables", "error", err)
		os.Exit(1)
	}

	// Provider adapters and router
	clients := provider.NewSet(&cfg.Proxies)
	names := make([]string, 0, len(clients))
	for name := range clients {
		names = append(names, name)
	}
	ring := health.NewRing(names)
	rt := router.New(table, ledger, clients, &cfg.Routing, logging.WithComponent("router"), router.WithHealth(ring))

	// Event hub, with optional Redis mirror
	hubOpts := []hub.Option{}
	if cfg.Bus.RedisAddr != "" {
		pub, err := bus.NewPublisher(bus.Config{
			Addr:   cfg.Bus.RedisAddr,
			Stream: cfg.Bus.Stream,
		}, logging.WithComponent("bus"))
		if err != nil {
			logger.Error("Failed to connect event mirror, continuing without", "error", err)
		} else {
			defer pub.Close()
			hubOpts = append(hubOpts, hub.WithMirror(pub))
			logger.Info("Event mirror connected", "addr", cfg.Bus.RedisAddr, "stream", cfg.Bus.Stream)
		}
	}
	eventHub := hub.New(logging.WithComponent("hub"), hubOpts...)

	// Workflow runner
	runner := workflow.NewRunner(rt, eventHub, logging.WithComponent("workflow"))

	// Quota rollover
	sched, err := scheduler.New(ledger, st, logging.WithComponent("scheduler"))
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(cfg, rt, ledger, eventHub, runner, st, ring, logging.WithComponent("server"))
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
}
