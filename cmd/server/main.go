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

	"bankimport/internal/auth"
	"bankimport/internal/config"
	"bankimport/internal/database"
	"bankimport/internal/filestore"
	"bankimport/internal/handlers"
	"bankimport/internal/importer"
	"bankimport/internal/jobs"
	"bankimport/internal/logger"
	"bankimport/internal/metrics"
	"bankimport/internal/parser"
	"bankimport/internal/resolver"
	"bankimport/internal/version"
)

func main() {
	// Handle --version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("bankimport %s (built %s, commit %s)\n",
			version.Version, version.BuildTime, version.GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger first
	log := logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Error("database_open_failed", "path", cfg.DBPath, "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(ctx); err != nil {
		log.Error("database_init_failed", "error", err.Error())
		os.Exit(1)
	}

	files, err := filestore.New(cfg.UploadsDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Error("filestore_init_failed", "path", cfg.UploadsDir, "error", err.Error())
		os.Exit(1)
	}

	rec := metrics.New()
	im := importer.New(importer.Config{
		Aliases:  db,
		Cache:    resolver.NewAliasCache(cfg.AliasCacheSize, cfg.AliasCacheTTL),
		TaxIDs:   db,
		Observer: rec,
		Parser:   parser.Options{BaseCurrency: cfg.BaseCurrency},
	})

	// Initialize and start job worker
	worker := jobs.NewWorker(db, log)
	worker.Register(jobs.ImportStatementJob, jobs.ImportStatementHandler(db, files, im))
	worker.Start()
	defer worker.Stop()

	a := auth.New(cfg.APIToken)
	if !a.Enabled() {
		log.Warn("auth_disabled", "reason", "BANKIMPORT_API_TOKEN not set")
	}

	h := handlers.New(db, files, im, cfg.MaxUploadBytes)
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handlers.NewRouter(h, handlers.RouterConfig{
			Auth:        a,
			Logger:      log,
			Metrics:     rec.Handler(),
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_starting", "port", cfg.Port, "address", "http://localhost:"+cfg.Port, "version", version.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_failed", "error", err.Error())
		}
	case <-ctx.Done():
		log.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server_shutdown_failed", "error", err.Error())
		}
	}
}
