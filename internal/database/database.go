// Package database manages the PostgreSQL connection and schema
package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aethra/farmops/internal/config"
	"github.com/aethra/farmops/internal/models"
)

// Connect opens the PostgreSQL connection using DATABASE_URL or the
// discrete DB_* environment variables.
func Connect() (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			envOr("DB_HOST", "localhost"),
			envOr("DB_PORT", "5432"),
			envOr("DB_USER", "farmops"),
			envOr("DB_PASSWORD", "farmops"),
			envOr("DB_NAME", "farmops"),
			envOr("DB_SSLMODE", "disable"),
		)
	}

	logLevel := logger.Warn
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// RunMigrations creates or updates every table
func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		// Tenancy & organization
		&models.Farm{},
		&models.Site{},
		&models.Greenhouse{},
		&models.Borehole{},
		&models.AssetCategory{},
		&models.Asset{},
		&models.Customer{},
		&models.HarvestLot{},

		// Users & permissions
		&models.User{},
		&models.Role{},
		&models.RolePermission{},
		&models.FarmMembership{},

		// Production
		&models.ProductionCycle{},
		&models.ActivityType{},
		&models.DailyLog{},
		&models.DailyLogItem{},
		&models.DailyLogItemInput{},
		&models.DailyLogItemPhoto{},
		&models.ProductionCycleAlert{},
		&models.HarvestRecord{},
		&models.HarvestCrate{},

		// Sales
		&models.SalesOrder{},
		&models.SalesOrderItem{},
		&models.Payment{},

		// System
		&config.SystemConfig{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations complete")
	return nil
}
