package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmgilman/go/fs/billy"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/JonMunkholm/taska/internal/config"
	"github.com/JonMunkholm/taska/internal/jobs"
	"github.com/JonMunkholm/taska/internal/logging"
	"github.com/JonMunkholm/taska/internal/notebook"
	"github.com/JonMunkholm/taska/internal/web"
)

type options struct {
	configFile string
	envFile    string
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := flag.NewFlagSet("server", flag.ContinueOnError)
	flagSet.StringVar(&opts.configFile, "config", os.Getenv(config.FileEnv), "path to a JSONC config file")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "path to a .env file loaded before configuration")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(opts.envFile); err != nil {
		slog.Info("no .env file found, using environment variables", "path", opts.envFile)
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)", "path", opts.envFile)
	}

	// Load and validate configuration
	cfg, err := config.LoadFrom(opts.configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"jobs_workers", cfg.Jobs.Workers,
		"jobs_start_delay", cfg.Jobs.StartDelay,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Connect to database
	ctx := context.Background()
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Verify connection
	if err := db.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

	// The local filesystem is rooted at "/", so the log directory must be absolute
	logDir, err := filepath.Abs(cfg.Jobs.LogDir)
	if err != nil {
		slog.Error("failed to resolve log directory", "dir", cfg.Jobs.LogDir, "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	store := jobs.NewStore()
	workers := jobs.NewPool(cfg.Jobs.Workers)
	worker := jobs.NewWorker(
		jobs.NewLogDir(billy.NewLocal(), logDir, cfg.Jobs.FilePrefix),
		store, clock, cfg.Jobs.StartDelay,
	)
	manager := jobs.NewManager(store, worker, workers)
	slog.Info("job manager ready", "log_dir", logDir, "workers", cfg.Jobs.Workers)

	notebooks := notebook.NewService(notebook.NewPGRepository(db), cfg.Cache.NotebookCapacity)

	// Create server with config
	server := web.NewServer(cfg, manager, notebooks, clock)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go jobs.StartMonitor(jobCtx, clock, store, workers, jobs.MonitorConfig{
		Interval: cfg.Jobs.MonitorInterval,
		WarnSize: cfg.Jobs.RegistryWarnSize,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let queued artifact jobs finish; whatever is still pausing at the
		// deadline is failed as interrupted
		status := workers.Status()
		if status.Active > 0 || status.Queued > 0 {
			slog.Info("waiting for artifact jobs to complete", "active", status.Active, "queued", status.Queued)
		}
		if err := workers.Shutdown(shutdownCtx); err != nil {
			slog.Warn("artifact jobs did not complete in time", "error", err)
		} else {
			slog.Info("all artifact jobs completed")
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
