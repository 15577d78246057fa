// Package main is the entry point for the Panelboard Go server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bbernstein/panelboard-go/internal/api"
	"github.com/bbernstein/panelboard-go/internal/config"
	"github.com/bbernstein/panelboard-go/internal/logging"
	"github.com/bbernstein/panelboard-go/internal/observability"
	"github.com/bbernstein/panelboard-go/internal/services/export"
	"github.com/bbernstein/panelboard-go/internal/services/panel"
	"github.com/bbernstein/panelboard-go/internal/services/pubsub"
	"github.com/bbernstein/panelboard-go/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var startTime = time.Now()

// flagOverrides holds command line values that take precedence over the environment.
type flagOverrides struct {
	port     string
	storage  string
	dataFile string
	seedFile string
}

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the server.
func newRootCmd() *cobra.Command {
	var flags flagOverrides

	rootCmd := &cobra.Command{
		Use:          "panelboard",
		Short:        "HTTP service for parameters and control panels",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flags.apply(cfg)
			return runServer(cmd.Context(), cfg)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.storage, "storage", "", "storage backend: file, sqlite, badger or memory (overrides STORAGE_BACKEND)")
	pf.StringVar(&flags.dataFile, "data-file", "", "JSON document path for the file backend (overrides DATA_FILE)")
	pf.StringVar(&flags.seedFile, "seed-file", "", "YAML seed with the initial parameters and component types (overrides SEED_FILE)")
	rootCmd.Flags().StringVar(&flags.port, "port", "", "HTTP listen port (overrides PORT)")

	rootCmd.AddCommand(newImportCmd(&flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// apply copies every non-empty flag into cfg.
func (f *flagOverrides) apply(cfg *config.Config) {
	if f.port != "" {
		cfg.Port = f.port
	}
	if f.storage != "" {
		cfg.StorageBackend = f.storage
	}
	if f.dataFile != "" {
		cfg.DataFile = f.dataFile
	}
	if f.seedFile != "" {
		cfg.SeedFile = f.seedFile
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("panelboard %s (build %s, commit %s)\n", Version, BuildTime, GitCommit)
		},
	}
}

// runServer serves the API until SIGINT or SIGTERM.
func runServer(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Print startup banner
	printBanner(cfg)

	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}

	persister, err := storage.Open(storage.FromAppConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := persister.Close(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}
	var ps *pubsub.PubSub
	if cfg.ChangeFeedEnabled {
		ps = pubsub.New()
	}

	panels, err := panel.Open(ctx, persister, seed.Document(),
		panel.WithLogger(logger.Named("panels")),
		panel.WithMetrics(metrics),
		panel.WithPubSub(ps))
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Options{
		Panels:     panels,
		Exporter:   export.NewService(panels, Version),
		PubSub:     ps,
		Metrics:    metrics,
		Logger:     logger.Named("http"),
		CORSOrigin: cfg.CORSOrigin,
		Debug:      cfg.IsDevelopment(),
	})

	// Routes
	router.Get("/health", healthCheckHandler)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s",
  "uptime": "%s"
}`, time.Now().UTC().Format(time.RFC3339), Version, time.Since(startTime).Truncate(time.Second))

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  Panelboard Go Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Storage:     %s\n", storageLocation(cfg))
	fmt.Printf("  Metrics:     %v\n", cfg.MetricsEnabled)
	fmt.Printf("  Change feed: %v\n", cfg.ChangeFeedEnabled)
	fmt.Println("============================================")
}

// storageLocation describes where the configured backend keeps the document.
func storageLocation(cfg *config.Config) string {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		return "sqlite (" + cfg.DatabaseURL + ")"
	case config.BackendBadger:
		return "badger (" + cfg.BadgerPath + ")"
	case config.BackendMemory:
		return "memory"
	default:
		return "file (" + cfg.DataFile + ")"
	}
}
