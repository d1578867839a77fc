package database

import (
	"errors"
	"fmt"

	"github.com/gdg-garage/event-platform-api/internal/config"
	"github.com/gdg-garage/event-platform-api/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table managed by AutoMigrate.
var Models = []any{
	&models.User{},
	&models.APIKey{},
	&models.Event{},
	&models.Room{},
	&models.Activity{},
	&models.Schedule{},
	&models.ActivityRegistration{},
	&models.Presence{},
	&models.RegistrationLog{},
	&models.Certificate{},
}

// Open opens a SQLite database and migrates the schema. Unique-constraint
// violations surface as gorm.ErrDuplicatedKey.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	// SQLite allows one writer; a single connection serialises transactions
	// and keeps in-memory databases from splitting across connections.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return db, nil
}

func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("path", cfg.DatabasePath))

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := EnsureAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, err
		}
		log.Info("admin account ensured", zap.String("email", cfg.AdminEmail))
	}

	return db, nil
}

// EnsureAdmin creates the bootstrap administrator, or promotes an existing
// account with that email.
func EnsureAdmin(db *gorm.DB, email, password string) error {
	var user models.User
	err := db.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.IsAdmin {
			return nil
		}
		return db.Model(&user).Update("is_admin", true).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		user = models.User{Name: "Administrator", Email: email, PasswordHash: string(hash), IsAdmin: true}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("lookup admin: %w", err)
	}
}
