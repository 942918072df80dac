package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/auth"
	"github.com/charlesng35/inkpost/internal/database/testutil"
	"github.com/charlesng35/inkpost/internal/models"
	"github.com/charlesng35/inkpost/internal/tokens"
	"github.com/charlesng35/inkpost/pkg/crypto"
	"github.com/charlesng35/inkpost/pkg/mail"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *recordingMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

type serviceFixture struct {
	db            *gorm.DB
	manager       *tokens.Manager
	confirmations *tokens.Confirmations
	jwt           *auth.JWTService
	mailer        *recordingMailer
	now           time.Time
}

func newServiceFixture(t *testing.T, values map[tokens.Kind]string) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		db:     testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()),
		mailer: &recordingMailer{},
		now:    time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	opts := []tokens.Option{tokens.WithClock(clock)}
	for kind, value := range values {
		v := value
		opts = append(opts, tokens.WithGenerator(kind, func() (string, error) { return v, nil }))
	}

	var err error
	f.manager, err = tokens.NewManager(f.db, opts...)
	require.NoError(t, err)
	f.confirmations, err = tokens.NewConfirmations(f.db)
	require.NoError(t, err)
	f.jwt, err = auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "inkpost", Clock: clock})
	require.NoError(t, err)
	return f
}

func (f *serviceFixture) accounts(t *testing.T) *AccountService {
	t.Helper()
	svc, err := NewAccountService(f.db, f.manager, f.confirmations, f.jwt, f.mailer,
		WithAccountBaseURL("https://blog.example.com/"),
		WithAccountClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	return svc
}

func (f *serviceFixture) createUser(t *testing.T, email, password string, verified, twoFactor bool) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Name:             "Test User",
		Email:            email,
		PasswordHash:     hash,
		Role:             models.RoleUser,
		TwoFactorEnabled: twoFactor,
	}
	if verified {
		at := f.now
		user.EmailVerifiedAt = &at
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}
