package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"findash/internal/auth"
	"findash/internal/backend"
	"findash/internal/cache"
	"findash/internal/cli"
	apphttp "findash/internal/http"
	"findash/internal/log"
	"findash/internal/services"
	"findash/internal/session"
	"findash/internal/sheets"
	gsheet "findash/internal/sheets/google"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(slog.LevelInfo, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.LoggerForConfig(cfg, log.ComponentApp)

	ctx := context.Background()

	cacheManager := cache.NewManager(logger)
	store := session.NewStore(cfg.MaxSessions, cfg.SessionTTL, cacheManager)
	cacheManager.StartCleanup(time.Minute)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid upload journal configuration", log.FieldError, err)
		os.Exit(1)
	}
	journal, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize upload journal", log.FieldError, err, "backend", cfg.UploadJournal)
		os.Exit(1)
	}

	var source sheets.WorkbookSource
	if cfg.SheetsConfigured() {
		src, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets source", log.FieldError, err)
			os.Exit(1)
		}
		source = src
	} else {
		logger.Info("Google Sheets import disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var gate auth.Gate = auth.Open{}
	if cfg.AuthRequired {
		users, err := auth.ParseUsers(cfg.AuthUsers)
		if err != nil {
			logger.Error("Invalid AUTH_USERS", log.FieldError, err)
			os.Exit(1)
		}
		gate = auth.NewBasic(users)
	} else {
		logger.Warn("Authentication disabled - dashboard is open to anyone who can reach it")
	}

	uploads := services.NewUploadService(store, journal.Journal, logger, services.Options{
		MaxBytes: cfg.MaxUploadBytes,
	})

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Version:            Version,
		Debug:              cfg.Debug,
		Currency:           cfg.Currency,
		SessionTTL:         cfg.SessionTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Gate:               gate,
		Sheets:             source,
		Uploads:            journal.Lister,
		Ready:              readiness(journal),
	}, store, uploads, logger)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := journal.Close(); err != nil {
			logger.Error("Failed to close upload journal", log.FieldError, err)
		}
	})

	logger.Info("Starting findash server",
		"port", cfg.Port,
		"version", Version,
		"journal", cfg.UploadJournal,
		"auth", cfg.AuthRequired,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// readiness pings the journal when it supports it.
func readiness(b *backend.BackendResult) func(context.Context) error {
	pinger, ok := b.Journal.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping
}
