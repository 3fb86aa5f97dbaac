package database

import (
	"commerce_settlement/config"
	"commerce_settlement/model"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB(s config.Settings) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		s.DBHost, s.DBPort, s.DBUser, s.DBPassword, s.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	log.Info("Connection Opened to Database")

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	log.Info("Database Migrated")

	DB = db
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Payment{},
		&model.PaymentOrder{},
		&model.CallbackLog{},
		&model.OrderSyncTask{},
	)
}
