package database

import (
	"time"

	"soko/config"
	"soko/internal/domain"
	"soko/internal/models"
	"soko/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.CallRecord{},
	)
}

// SeedAdmin creates the initial admin account with a year-long entitlement
// so a fresh deployment can place calls out of the box.
func SeedAdmin(db *gorm.DB) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.WithError(err).Warn("seed admin: hash password")
		return
	}
	admin := models.User{
		Username:     "admin",
		Email:        "admin@soko.local",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		logger.Log.WithError(err).Warn("seed admin: create user")
		return
	}
	sub := models.Subscription{
		UserID:    admin.ID,
		Plan:      "vendor-pro",
		Status:    domain.SubscriptionStatusActive,
		ExpiresAt: time.Now().AddDate(1, 0, 0),
	}
	if err := db.Create(&sub).Error; err != nil {
		logger.Log.WithError(err).Warn("seed admin: create subscription")
	}
}
