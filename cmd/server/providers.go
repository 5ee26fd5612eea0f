// File: cmd/server/providers.go
package main

import (
	"log"
	"time"

	"medibook_backend/internal/appointment"
	"medibook_backend/internal/auth"
	"medibook_backend/internal/config"
	"medibook_backend/internal/doctor"
	"medibook_backend/internal/platform/database"
	"medibook_backend/internal/platform/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// provideLogger builds the application logger; the cleanup flushes it.
func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	appLogger, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := appLogger.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}
	return appLogger, cleanup, nil
}

// provideDatabase opens the database and migrates the schema.
func provideDatabase(cfg *config.Config, appLogger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg, appLogger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(db, &doctor.Doctor{}, &appointment.Appointment{}); err != nil {
		database.CloseGORMDB(db, appLogger)
		return nil, nil, err
	}
	return db, func() { database.CloseGORMDB(db, appLogger) }, nil
}

// provideBlocklistConfig keeps revoked tokens for as long as a session
// cookie can live.
func provideBlocklistConfig(cfg *config.Config) auth.InMemoryBlocklistConfig {
	return auth.InMemoryBlocklistConfig{
		DefaultExpiration: cfg.SessionCookieMaxAge,
		CleanupInterval:   10 * time.Minute,
	}
}
