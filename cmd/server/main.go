package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"vendgate/internal/config"
	"vendgate/internal/repository/sheets"
	"vendgate/internal/scheduler"
	"vendgate/internal/server/handlers"
	"vendgate/internal/server/router"
	allocationsvc "vendgate/internal/service/allocation"
	reportingsvc "vendgate/internal/service/reporting"
	"vendgate/pkg/clients/storefront"
	"vendgate/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	storeClient := storefront.NewClient(cfg.Storefront, baseLogger.Named("client.storefront"))

	loginCtx, cancelLogin := context.WithTimeout(context.Background(), cfg.Storefront.Timeout)
	if err := storeClient.Login(loginCtx); err != nil {
		// The keepalive job retries; starting without a session is fine.
		baseLogger.Warn("initial storefront login failed", zap.Error(err))
	}
	cancelLogin()

	allocSvc := allocationsvc.NewService(storeClient, baseLogger.Named("svc.allocation"))

	var reportingSvc *reportingsvc.Service
	if cfg.SheetsEnabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		reportingSvc = reportingsvc.NewService(storeClient, sheetsRepo, baseLogger.Named("svc.reporting"))
		baseLogger.Info("sheet-backed stock reporting enabled")
	} else {
		baseLogger.Warn("sheets credentials missing, stock reporting disabled")
	}

	authHandler := handlers.NewAuthHandler(storeClient, baseLogger.Named("handlers.auth"))
	allocHandler := handlers.NewAllocationHandler(storeClient, allocSvc, baseLogger.Named("handlers.allocation"))
	engine := router.New(authHandler, allocHandler, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, storeClient, reportingSvc, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
