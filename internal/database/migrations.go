package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/models"
)

// AutoMigrate creates or updates the schema for all persistent models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.AuthToken{},
		&models.TwoFactorConfirmation{},
		&models.RateLimitHit{},
		&models.RateLimitBucket{},
	)
}
