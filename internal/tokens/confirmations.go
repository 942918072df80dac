package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/inkpost/internal/models"
)

// Confirmations records which users passed the two-factor challenge of their current sign-in.
type Confirmations struct {
	db *gorm.DB
}

// NewConfirmations constructs a Confirmations store.
func NewConfirmations(db *gorm.DB) (*Confirmations, error) {
	if db == nil {
		return nil, errors.New("tokens: db is required")
	}
	return &Confirmations{db: db}, nil
}

// Confirm records a confirmation for userID. Repeated calls are no-ops.
func (c *Confirmations) Confirm(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("tokens: user id is required")
	}

	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&models.TwoFactorConfirmation{UserID: userID}).Error
	if err != nil {
		return fmt.Errorf("tokens: confirm two factor: %w", err)
	}
	return nil
}

// Exists reports whether userID holds a confirmation.
func (c *Confirmations) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).
		Model(&models.TwoFactorConfirmation{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("tokens: lookup two factor confirmation: %w", err)
	}
	return count > 0, nil
}

// Clear removes the confirmation of userID, if any.
func (c *Confirmations) Clear(ctx context.Context, userID string) error {
	if err := c.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.TwoFactorConfirmation{}).Error; err != nil {
		return fmt.Errorf("tokens: clear two factor confirmation: %w", err)
	}
	return nil
}
