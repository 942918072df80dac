package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/tokens"
	"github.com/charlesng35/inkpost/pkg/crypto"
	apperrors "github.com/charlesng35/inkpost/pkg/errors"
	"github.com/charlesng35/inkpost/pkg/mail"
)

// ResetPasswordInput carries a password reset confirmation.
type ResetPasswordInput struct {
	Email    string
	Token    string
	Password string
}

// PasswordService implements the forgotten password flow.
type PasswordService struct {
	db     *gorm.DB
	tokens *tokens.Manager
	mail   tokenMailer
}

// NewPasswordService constructs a PasswordService. baseURL prefixes the emailed reset link.
func NewPasswordService(db *gorm.DB, manager *tokens.Manager, mailer mail.Mailer, baseURL string) (*PasswordService, error) {
	if db == nil {
		return nil, errors.New("password service: db is required")
	}
	if manager == nil {
		return nil, errors.New("password service: token manager is required")
	}
	return &PasswordService{db: db, tokens: manager, mail: newTokenMailer(mailer, baseURL)}, nil
}

// RequestReset emails a reset link when the account exists. The outcome is the same either way.
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	user, err := findUserByEmail(ctx, s.db, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	issued, err := s.tokens.Issue(ctx, tokens.KindPasswordReset, user.Email)
	if err != nil {
		return err
	}
	s.mail.send(ctx, issued)
	return nil
}

// ResetPassword consumes a reset token and replaces the account password.
func (s *PasswordService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if input.Password == "" {
		return apperrors.NewBadRequest("password is required")
	}

	consumed, err := s.tokens.Consume(ctx, tokens.KindPasswordReset, input.Email, input.Token)
	if err != nil {
		return flattenTokenError(err)
	}

	user, err := findUserByEmail(ctx, s.db, consumed.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrInvalidToken
		}
		return err
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return fmt.Errorf("password service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("password service: update password: %w", err)
	}
	return nil
}
