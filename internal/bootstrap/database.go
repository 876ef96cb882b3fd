package bootstrap

import (
	"elearning-chatbot-be/internal/config"
	"elearning-chatbot-be/internal/model"
	"elearning-chatbot-be/pkg/database"

	"gorm.io/gorm"
)

// OpenDatabase connects to postgres and migrates the service's tables. It
// returns a nil db when no connection string is configured.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Connection == "" {
		return nil, nil
	}
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, database.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		Verbose:      cfg.App.Environment == "debug",
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, model.All()...); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}
