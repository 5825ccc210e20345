package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cryptofolio/src/config"
)

// SetupGormDB opens the same database through gorm for the plain CRUD
// surfaces; the ledger hot path stays on pgx.
func SetupGormDB(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
