package database

import (
	"gorm.io/gorm"

	"agentsite/logging"
	"agentsite/models"
)

func RunMigrations(db *gorm.DB, l *logging.ContextLogger) error {
	l.Info("Running database migrations...")

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		l.WithError(err).Error("Error running migrations")
		return err
	}

	l.WithField("tables", len(models.AllModels())).Info("Migrations completed successfully")
	return nil
}
