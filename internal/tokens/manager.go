package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/database"
	"github.com/charlesng35/inkpost/internal/models"
	"github.com/charlesng35/inkpost/pkg/crypto"
	"github.com/charlesng35/inkpost/pkg/logger"
	"github.com/charlesng35/inkpost/pkg/metrics"
)

// Issued is the result of Issue. Value is the plaintext token and is never persisted.
type Issued struct {
	ID        string
	Kind      Kind
	Email     string
	Value     string
	ExpiresAt time.Time
}

// Consumed is the result of a successful Consume.
type Consumed struct {
	Kind  Kind
	Email string
}

// Option customises the Manager.
type Option func(*Manager)

// WithTTLs overrides per-kind lifetimes.
func WithTTLs(ttls TTLs) Option {
	return func(m *Manager) {
		m.ttls = ttls
	}
}

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithGenerator replaces the value generator of one kind.
func WithGenerator(kind Kind, gen Generator) Option {
	return func(m *Manager) {
		if gen != nil {
			m.generators[kind] = gen
		}
	}
}

// Manager issues and consumes single-use expiring tokens stored in auth_tokens.
type Manager struct {
	db         *gorm.DB
	ttls       TTLs
	generators map[Kind]Generator
	now        func() time.Time
}

// NewManager constructs a Manager backed by db.
func NewManager(db *gorm.DB, opts ...Option) (*Manager, error) {
	if db == nil {
		return nil, errors.New("tokens: db is required")
	}

	m := &Manager{
		db:         db,
		generators: make(map[Kind]Generator, 3),
		now:        time.Now,
	}
	for _, kind := range Kinds() {
		m.generators[kind] = defaultGenerator(kind)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the lifetime applied to tokens of kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	return m.ttls.forKind(kind)
}

// Issue replaces any token of kind for email with a freshly generated one.
func (m *Manager) Issue(ctx context.Context, kind Kind, email string) (*Issued, error) {
	email, err := normalise(kind, email)
	if err != nil {
		return nil, err
	}

	value, err := m.generators[kind]()
	if err != nil {
		return nil, fmt.Errorf("tokens: generate %s: %w", kind, err)
	}

	row := models.AuthToken{
		Kind:      kind.String(),
		Email:     email,
		TokenHash: crypto.HashToken(value),
		ExpiresAt: m.now().Add(m.TTL(kind)).UTC(),
	}

	err = m.replace(ctx, &row)
	if err != nil && database.IsUniqueConstraintError(err) {
		// A concurrent issue for the same pair won the insert; the later writer replaces it.
		row.ID = ""
		err = m.replace(ctx, &row)
	}
	if err != nil {
		return nil, fmt.Errorf("tokens: issue %s: %w", kind, err)
	}

	metrics.TokensIssued.WithLabelValues(kind.String()).Inc()

	return &Issued{
		ID:        row.ID,
		Kind:      kind,
		Email:     email,
		Value:     value,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (m *Manager) replace(ctx context.Context, row *models.AuthToken) error {
	existing, err := m.find(ctx, Kind(row.Kind), row.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil {
		if err := m.db.WithContext(ctx).Delete(&models.AuthToken{}, "id = ?", existing.ID).Error; err != nil {
			return err
		}
	}
	return m.db.WithContext(ctx).Create(row).Error
}

// Consume validates presented against the live token of kind for email and deletes it on success.
// Mismatched and expired tokens are left in place.
func (m *Manager) Consume(ctx context.Context, kind Kind, email, presented string) (*Consumed, error) {
	email, err := normalise(kind, email)
	if err != nil {
		return nil, err
	}

	result, err := m.consume(ctx, kind, email, strings.TrimSpace(presented))
	metrics.TokenConsumptions.WithLabelValues(kind.String(), consumeResult(err)).Inc()
	if err != nil && IsInvalidToken(err) {
		logger.WithModule("tokens").Info("token rejected",
			zap.String("kind", kind.String()),
			zap.String("reason", consumeResult(err)),
		)
	}
	return result, err
}

func (m *Manager) consume(ctx context.Context, kind Kind, email, presented string) (*Consumed, error) {
	row, err := m.find(ctx, kind, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tokens: find %s: %w", kind, err)
	}

	if !crypto.EqualHashes(row.TokenHash, crypto.HashToken(presented)) {
		return nil, ErrTokenMismatched
	}
	if m.now().After(row.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	res := m.db.WithContext(ctx).Delete(&models.AuthToken{}, "id = ?", row.ID)
	if res.Error != nil {
		return nil, fmt.Errorf("tokens: delete %s: %w", kind, res.Error)
	}
	if res.RowsAffected == 0 {
		// Consumed or replaced between the read and the delete.
		return nil, ErrTokenNotFound
	}

	return &Consumed{Kind: kind, Email: row.Email}, nil
}

// Sweep deletes every token whose expiry has passed and returns the number of rows removed.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	res := m.db.WithContext(ctx).
		Where("expires_at < ?", m.now().UTC()).
		Delete(&models.AuthToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("tokens: sweep: %w", res.Error)
	}
	metrics.TokensSwept.Add(float64(res.RowsAffected))
	return res.RowsAffected, nil
}

func (m *Manager) find(ctx context.Context, kind Kind, email string) (*models.AuthToken, error) {
	var row models.AuthToken
	if err := m.db.WithContext(ctx).
		Where("kind = ? AND email = ?", kind.String(), email).
		Take(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func normalise(kind Kind, email string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	return email, nil
}

func consumeResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrTokenMismatched):
		return "mismatched"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	default:
		return "error"
	}
}
