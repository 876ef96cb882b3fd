package main

import (
	"os"

	"elearning-chatbot-be/internal/bootstrap"
	"elearning-chatbot-be/internal/config"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/database"
)

// Standalone migration for deploy pipelines that do not ship chatctl.
func main() {
	cfg := config.Load()
	sysLogger := logger.NewConsoleLogger(false)
	defer sysLogger.Sync()

	if cfg.Database.Connection == "" {
		sysLogger.Error("MIGRATE", "DB_CONNECTION_STRING is not set", nil)
		os.Exit(1)
	}

	sysLogger.Info("MIGRATE", "Running migration", nil)
	db, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		sysLogger.Error("MIGRATE", "Migration failed", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	defer database.Close(db)

	sysLogger.Info("MIGRATE", "Migration complete", nil)
}
