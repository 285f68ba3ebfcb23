package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"

	server "routesim/server"
	servernet "routesim/server/internal/net"
	"routesim/server/internal/routes"
	"routesim/server/internal/telemetry"
	"routesim/server/logging"
	loggingSinks "routesim/server/logging/sinks"
)

// Run wires storage, the playback hub and the HTTP surface, then serves until
// ctx is cancelled. Shutdown stops the listener first, then the hub, the event
// router and finally storage.
func Run(ctx context.Context, cfg Config) error {
	log := logs.GetLoggerFromString(cfg.LogLevel)
	telemetryLogger := telemetry.WrapSlog(log, slog.LevelInfo)

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := routes.OpenIndex(cfg.BlugeFilepath)
	if err != nil {
		return fmt.Errorf("route index opening failed: %w", err)
	}
	defer index.Close()

	repo := routes.NewBadgerRepository(db, index, log)
	if cfg.SeedRoutes {
		seeded, err := repo.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seeding routes failed: %w", err)
		}
		if seeded > 0 {
			log.Info("Seeded reference routes", "count", seeded)
		}
	}
	if err := repo.Reindex(ctx); err != nil {
		return fmt.Errorf("route reindex failed: %w", err)
	}

	sinks, err := buildSinks(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	router := logging.NewRouter(cfg.LoggingConfig(), logging.SystemClock(), os.Stderr, sinks...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()
	publisher := logging.WithFields(router, cfg.LoggingConfig().CloneFields())

	hubCfg := cfg.HubConfig()
	hubCfg.Logger = telemetryLogger
	hubCfg.Publisher = publisher
	hub := server.NewHub(repo, hubCfg)
	hub.StartSweeper()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close hub: %v", cerr)
		}
	}()

	clientDir, err := resolveClientDir(cfg.ClientDir)
	if err != nil {
		return err
	}
	if clientDir != "" {
		log.Info("Serving client assets", "dir", clientDir)
	}
	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:     clientDir,
		Logger:        telemetryLogger,
		Publisher:     publisher,
		Routes:        repo,
		Observability: cfg.Observability(),
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("Server listening", "addr", srv.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func openStore(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.BadgerFilepath).WithLoggingLevel(badger.WARNING)
	if cfg.BadgerInMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	}
	return badger.Open(opts)
}

// buildSinks creates the enabled sinks. On failure the sinks built so far are
// closed again.
func buildSinks(cfg logging.Config) (named []logging.NamedSink, err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, n := range named {
			_ = n.Sink.Close(context.Background())
		}
		named = nil
	}()
	for _, name := range cfg.EnabledSinks {
		switch name {
		case SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsole(os.Stdout, cfg.Console)})
		case SinkMemory:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemory()})
		case SinkJSON:
			if err := os.MkdirAll(filepath.Dir(cfg.JSON.FilePath), 0o755); err != nil {
				return named, fmt.Errorf("log directory: %w", err)
			}
			file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return named, fmt.Errorf("open json log: %w", err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(file, cfg.JSON.FlushInterval)})
		default:
			return named, fmt.Errorf("unknown log sink %q", name)
		}
	}
	return named, nil
}
