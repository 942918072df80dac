package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/auth"
	"github.com/charlesng35/inkpost/internal/database"
	"github.com/charlesng35/inkpost/internal/models"
	"github.com/charlesng35/inkpost/internal/tokens"
	"github.com/charlesng35/inkpost/pkg/crypto"
	apperrors "github.com/charlesng35/inkpost/pkg/errors"
	"github.com/charlesng35/inkpost/pkg/logger"
	"github.com/charlesng35/inkpost/pkg/mail"
)

// ErrEmailTaken indicates an account already uses the email address.
var ErrEmailTaken = apperrors.New("auth.email_taken", "An account with this email already exists", http.StatusConflict)

// RegisterInput describes a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput carries sign-in credentials. Code is the emailed two-factor code, when requested.
type LoginInput struct {
	Email    string
	Password string
	Code     string
}

// LoginResult is returned after a successful sign-in.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *models.User
}

// AccountOption customises the AccountService.
type AccountOption func(*AccountService)

// WithAccountBaseURL sets the base URL used in emailed links.
func WithAccountBaseURL(url string) AccountOption {
	return func(s *AccountService) {
		s.mail = newTokenMailer(s.mail.mailer, url)
	}
}

// WithAccountClock injects a custom time source.
func WithAccountClock(clock func() time.Time) AccountOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AccountService handles registration, email verification and sign-in.
type AccountService struct {
	db            *gorm.DB
	tokens        *tokens.Manager
	confirmations *tokens.Confirmations
	jwt           *auth.JWTService
	mail          tokenMailer
	now           func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB, manager *tokens.Manager, confirmations *tokens.Confirmations, jwt *auth.JWTService, mailer mail.Mailer, opts ...AccountOption) (*AccountService, error) {
	switch {
	case db == nil:
		return nil, errors.New("account service: db is required")
	case manager == nil:
		return nil, errors.New("account service: token manager is required")
	case confirmations == nil:
		return nil, errors.New("account service: two factor confirmations are required")
	case jwt == nil:
		return nil, errors.New("account service: jwt service is required")
	}

	svc := &AccountService{
		db:            db,
		tokens:        manager,
		confirmations: confirmations,
		jwt:           jwt,
		mail:          newTokenMailer(mailer, ""),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates an unverified account and emails a verification link.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := normaliseEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" || name == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("name, email and password are required")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("account service: create user: %w", err)
	}

	if err := s.sendVerification(ctx, email); err != nil {
		return nil, err
	}

	logger.WithModule("accounts").Info("account registered", zap.String("user_id", user.ID))
	return user, nil
}

// ResendVerification issues a fresh verification token for unverified accounts. Unknown and already
// verified addresses succeed silently.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified() {
		return nil
	}
	return s.sendVerification(ctx, user.Email)
}

// VerifyEmail consumes a verification token and marks the account as verified.
func (s *AccountService) VerifyEmail(ctx context.Context, email, token string) (*models.User, error) {
	consumed, err := s.tokens.Consume(ctx, tokens.KindVerification, email, token)
	if err != nil {
		return nil, flattenTokenError(err)
	}

	user, err := s.findByEmail(ctx, consumed.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}

	if !user.EmailVerified() {
		verifiedAt := s.now().UTC()
		if err := s.db.WithContext(ctx).Model(user).Update("email_verified_at", verifiedAt).Error; err != nil {
			return nil, fmt.Errorf("account service: mark verified: %w", err)
		}
		user.EmailVerifiedAt = &verifiedAt
	}
	return user, nil
}

// Login authenticates a user. Unverified accounts receive a new verification email; accounts with
// two-factor enabled receive a code and must repeat the call with it.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.findByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.VerifyPassword(user.PasswordHash, input.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.EmailVerified() {
		if err := s.sendVerification(ctx, user.Email); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrEmailNotVerified
	}

	if user.TwoFactorEnabled {
		if err := s.twoFactorChallenge(ctx, user, strings.TrimSpace(input.Code)); err != nil {
			return nil, err
		}
		if err := s.spendConfirmation(ctx, user); err != nil {
			return nil, err
		}
	}

	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("account service: issue access token: %w", err)
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   s.now().Add(s.jwt.TTL()),
		User:        user,
	}, nil
}

func (s *AccountService) twoFactorChallenge(ctx context.Context, user *models.User, code string) error {
	if code == "" {
		if err := s.confirmations.Clear(ctx, user.ID); err != nil {
			return err
		}
		issued, err := s.tokens.Issue(ctx, tokens.KindTwoFactor, user.Email)
		if err != nil {
			return err
		}
		s.mail.send(ctx, issued)
		return apperrors.ErrTwoFactorRequired
	}

	if _, err := s.tokens.Consume(ctx, tokens.KindTwoFactor, user.Email, code); err != nil {
		return flattenTokenError(err)
	}
	return s.confirmations.Confirm(ctx, user.ID)
}

// spendConfirmation gates token issuance on a recorded confirmation and removes it, so each
// confirmation covers exactly one sign-in.
func (s *AccountService) spendConfirmation(ctx context.Context, user *models.User) error {
	confirmed, err := s.confirmations.Exists(ctx, user.ID)
	if err != nil {
		return err
	}
	if !confirmed {
		return apperrors.ErrTwoFactorRequired
	}
	return s.confirmations.Clear(ctx, user.ID)
}

// Me returns the account with the given id.
func (s *AccountService) Me(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("account service: load user: %w", err)
	}
	return &user, nil
}

func (s *AccountService) sendVerification(ctx context.Context, email string) error {
	issued, err := s.tokens.Issue(ctx, tokens.KindVerification, email)
	if err != nil {
		return err
	}
	s.mail.send(ctx, issued)
	return nil
}

func (s *AccountService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	return findUserByEmail(ctx, s.db, email)
}

func findUserByEmail(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	email = normaliseEmail(email)
	if email == "" {
		return nil, gorm.ErrRecordNotFound
	}

	var user models.User
	if err := db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// flattenTokenError collapses every token failure into the single client-facing error. Store
// failures pass through unchanged.
func flattenTokenError(err error) error {
	if tokens.IsInvalidToken(err) || errors.Is(err, tokens.ErrEmailRequired) {
		return apperrors.ErrInvalidToken
	}
	return err
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
