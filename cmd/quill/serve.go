package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/alphabot-ai/quill/internal/auth"
	"github.com/alphabot-ai/quill/internal/config"
	httpapp "github.com/alphabot-ai/quill/internal/http"
	"github.com/alphabot-ai/quill/internal/logging"
	"github.com/alphabot-ai/quill/internal/store"
	"github.com/alphabot-ai/quill/internal/store/postgres"
	"github.com/alphabot-ai/quill/internal/store/sqlite"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server"},
		Usage:   "Start the Quill server (default when no command is given)",
		Description: `Configuration comes from the environment:
  QUILL_ADDR / PORT        listen address (default :8080)
  QUILL_DB_DRIVER          sqlite or postgres (default sqlite)
  QUILL_DB                 SQLite path or Postgres DSN (default quill.db)
  QUILL_JWT_SECRET         token signing secret (required)
  QUILL_TOKEN_TTL          token lifetime (default 168h)
  QUILL_REQUEST_TIMEOUT    per-request timeout (default 10s)
  QUILL_MAX_BODY_BYTES     request body limit (default 1048576)
  QUILL_LOG_LEVEL          debug, info, warn or error (default info)
  QUILL_LOG_FORMAT         json or text (default json)
  QUILL_LOG_FILE           optional rotated log file`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides QUILL_ADDR"},
			&cli.StringFlag{Name: "db", Usage: "database location, overrides QUILL_DB"},
			&cli.StringFlag{Name: "driver", Usage: "sqlite or postgres, overrides QUILL_DB_DRIVER"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Load()
			if c.IsSet("addr") {
				cfg.Addr = c.String("addr")
			}
			if c.IsSet("db") {
				cfg.DB = c.String("db")
			}
			if c.IsSet("driver") {
				cfg.DBDriver = c.String("driver")
			}
			return runServer(c.Context, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closer.Close()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	defer st.Close()

	authSvc, err := auth.NewService(st, cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	server := httpapp.NewServer(st, authSvc, logger, cfg, httpapp.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "quill listening", "addr", cfg.Addr, "driver", cfg.DBDriver, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DB)
	default:
		return sqlite.Open(cfg.DB)
	}
}
