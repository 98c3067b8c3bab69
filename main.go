package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/orian/labeltree/labels"
	"github.com/orian/labeltree/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newRouter mounts the API under /api and Prometheus metrics on /metrics.
func newRouter(server *Server) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Labels
		r.Get("/labels", server.handleListLabels)
		r.Post("/labels", server.handleAddLabel)
		r.Route("/labels/{labelId}", func(r chi.Router) {
			r.Delete("/", server.handleRemoveLabel)
			r.Post("/rename", server.handleRenameLabel)
			r.Get("/options", server.handleGetOptions)
			r.Patch("/options", server.handleSetOptions)
			r.Get("/parent-path", server.handleGetParentPath)
		})

		r.Get("/preferences", server.handleGetPreferences)
		r.Patch("/preferences", server.handleSetPreferences)

		// Assignment and queries
		r.Post("/item-labels", server.handleSetItemLabels)
		r.Post("/items/filter", server.handleFilterItems)
		r.Get("/snapshot", server.handleSnapshot)
		r.Get("/status", server.handleStatus)
		r.Get("/activity", server.handleGetActivity)

		// Host bridge
		r.Post("/session/start", server.handleStartSession)
		r.Post("/items", server.handleAddItem)
		r.Route("/items/{itemId}", func(r chi.Router) {
			r.Get("/", server.handleGetItem)
			r.Delete("/", server.handleRemoveItem)
			r.Get("/label", server.handleGetItemLabel)
			r.Post("/finished", server.handleItemFinished)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func openStorage(cfg StoreConfig) (models.Storage, error) {
	if cfg.Driver == "memory" {
		log.Warn("Using in-memory storage, labels are lost on exit")
		return memoryStorage{}, nil
	}
	storage, err := NewStorage(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"driver": cfg.Driver, "path": cfg.Path}).Info("Storage initialized")
	return storage, nil
}

func runServe(ctx context.Context, cfg Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	storage, err := openStorage(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storage.Close()

	activity := openActivitySink(ctx, cfg.ClickHouse)
	defer activity.Close()

	registry := NewItemRegistry(cfg.DownloadDir)
	engine := labels.New(registry, storage, labels.WithMover(registry), labels.WithLogger(log.StandardLogger()))

	if cfg.Autostart {
		if err := engine.Start(); err != nil {
			return err
		}
	} else {
		log.Info("Waiting for POST /api/session/start before initializing labels")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(NewServer(engine, registry, activity)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// resolveConfig layers the config file, the environment and the flags
// that were set explicitly.
func resolveConfig(cmd *cobra.Command, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		if err := LoadConfigFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	stringFlags := map[string]*string{
		"addr":         &cfg.Addr,
		"log-level":    &cfg.LogLevel,
		"download-dir": &cfg.DownloadDir,
		"store":        &cfg.Store.Driver,
		"db":           &cfg.Store.Path,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("autostart") {
		cfg.Autostart, _ = flags.GetBool("autostart")
	}

	return cfg, cfg.Validate()
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the label HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, os.Getenv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	defaults := DefaultConfig()
	cmd.Flags().String("config", "", "Path to a YAML config file")
	cmd.Flags().String("addr", defaults.Addr, "HTTP listen address")
	cmd.Flags().String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
	cmd.Flags().String("download-dir", defaults.DownloadDir, "Default save path for items")
	cmd.Flags().String("store", defaults.Store.Driver, "Storage driver: duckdb|sqlite|memory")
	cmd.Flags().String("db", defaults.Store.Path, "Database file path")
	cmd.Flags().Bool("autostart", false, "Initialize labels at boot instead of on session start")
	return cmd
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "labeltree",
		Short:         "Hierarchical labels for torrent clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
