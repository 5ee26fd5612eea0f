// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"log" // Standard log for messages before zap is active or after it is flushed
	"os"
	"os/signal"
	"syscall"
	"time"

	"medibook_backend/internal/app"
	"medibook_backend/internal/config"
	"medibook_backend/internal/doctor"
	platformes "medibook_backend/internal/platform/elasticsearch"

	"go.uber.org/zap"
)

// Application is everything main needs from the dependency graph.
type Application struct {
	Server   *app.Server
	Logger   *zap.Logger
	ESClient *platformes.ESClientWrapper
	Doctors  doctor.Service
}

func main() {
	syncDoctorsCmd := flag.NewFlagSet("sync-doctors", flag.ExitOnError)
	batchSize := syncDoctorsCmd.Int("batch-size", 100, "Batch size for syncing doctors")
	esRefresh := syncDoctorsCmd.String("es-refresh", "false", "Elasticsearch refresh policy (true, false, wait_for)")

	if len(os.Args) > 1 && os.Args[1] == "sync-doctors" {
		_ = syncDoctorsCmd.Parse(os.Args[2:])
		if err := runDoctorSync(*batchSize, *esRefresh); err != nil {
			log.Fatalf("FATAL: Doctor synchronization failed: %v", err)
		}
		return
	}

	startServer()
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	application, cleanup, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()
	appLogger := application.Logger

	if application.ESClient != nil {
		if err := platformes.CreateIndexIfNotExists(context.Background(), application.ESClient, doctor.IndexName, doctor.IndexMapping(), appLogger); err != nil {
			appLogger.Error("Failed to create Elasticsearch doctors index; search falls back to the database", zap.Error(err))
		}
	} else {
		appLogger.Info("Elasticsearch client not initialized, skipping index creation.")
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- application.Server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down server...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		appLogger.Info("Server shutdown complete.")
	}
}

// runDoctorSync pushes every doctor profile into Elasticsearch.
func runDoctorSync(batchSize int, esRefresh string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appLogger, flush, err := provideLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	db, closeDB, err := provideDatabase(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeDB()

	esClient, err := platformes.NewClient(cfg, appLogger)
	if err != nil {
		return err
	}
	if esClient == nil {
		appLogger.Error("ELASTICSEARCH_URL is not set; nothing to sync")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if err := platformes.CreateIndexIfNotExists(ctx, esClient, doctor.IndexName, doctor.IndexMapping(), appLogger); err != nil {
		return err
	}

	doctors := doctor.NewService(doctor.NewGORMRepository(db), doctor.NewSearchIndex(esClient, appLogger), appLogger)
	appLogger.Info("Starting doctor synchronization to Elasticsearch...",
		zap.Int("batchSize", batchSize),
		zap.String("esRefreshPolicy", esRefresh),
	)
	synced, err := doctors.SyncSearchIndex(ctx, batchSize, esRefresh)
	if err != nil {
		return err
	}
	appLogger.Info("Doctor synchronization completed successfully.", zap.Int("synced", synced))
	return nil
}
