package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"agentsite/app"
	"agentsite/common"
	"agentsite/config"
	"agentsite/database"
	"agentsite/logging"
	"agentsite/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	logger.WithField("config", cfg.String()).Info("configuration loaded")

	if cfg.TracingEnabled {
		tp, err := telemetry.InitTracing(app.ServiceName, version, os.Stdout)
		if err != nil {
			logger.WithError(err).Fatal("failed to initialize tracing")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.ShutdownTracing(ctx, tp); err != nil {
				logger.WithError(err).Error("failed to flush traces")
			}
		}()
	}

	db, err := common.ConnectDb(cfg.SQLiteDB, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.RunMigrations(db, logger); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	application := app.Build(cfg, db, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Run()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("server stopped")
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}
