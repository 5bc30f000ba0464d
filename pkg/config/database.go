package config

import (
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"omnivault/internal/storage/gormstore"
)

var DB *gorm.DB

// OpenDB opens the PostgreSQL connection pool without touching the schema.
func OpenDB(cfg DatabaseSettings) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance: ", err)
	}
	sqlDB.SetMaxIdleConns(50)
	sqlDB.SetMaxOpenConns(200)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	return DB
}

// InitDB opens the PostgreSQL connection pool and migrates the vault models.
func InitDB(cfg DatabaseSettings) *gorm.DB {
	OpenDB(cfg)
	if err := DB.AutoMigrate(gormstore.Models()...); err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}
	log.WithFields(log.Fields{
		"host": cfg.Host,
		"name": cfg.Name,
	}).Info("Database initialized")
	return DB
}
