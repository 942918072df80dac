package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/api"
	iauth "github.com/charlesng35/inkpost/internal/auth"
	"github.com/charlesng35/inkpost/internal/cache"
	sharedtestutil "github.com/charlesng35/inkpost/internal/database/testutil"
	"github.com/charlesng35/inkpost/internal/models"
	"github.com/charlesng35/inkpost/internal/monitoring"
	"github.com/charlesng35/inkpost/internal/monitoring/checks"
	"github.com/charlesng35/inkpost/internal/ratelimit"
	"github.com/charlesng35/inkpost/internal/services"
	"github.com/charlesng35/inkpost/internal/tokens"
	"github.com/charlesng35/inkpost/pkg/crypto"
	"github.com/charlesng35/inkpost/pkg/mail"
	"github.com/charlesng35/inkpost/pkg/response"
)

// Fixed token values emitted by the test environment's generators.
const (
	VerificationToken  = "verification-token-value"
	PasswordResetToken = "password-reset-token-value"
	TwoFactorCode      = "123456"
)

// DefaultClientIP is the remote address used by Request.
const DefaultClientIP = "192.0.2.10"

// Mailer records every message sent through it.
type Mailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *Mailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *Mailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Limiter *ratelimit.Limiter
	Mailer  *Mailer
}

// Option customises the environment.
type Option func(*envConfig)

type envConfig struct {
	store    cache.Store
	policies []ratelimit.Policy
}

// WithStore replaces the in-memory counter store.
func WithStore(store cache.Store) Option {
	return func(c *envConfig) { c.store = store }
}

// WithPolicies replaces the default policy table.
func WithPolicies(policies []ratelimit.Policy) Option {
	return func(c *envConfig) { c.policies = policies }
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := envConfig{policies: ratelimit.DefaultPolicies()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		mem := cache.NewMemoryStore(time.Hour)
		t.Cleanup(func() { _ = mem.Close() })
		cfg.store = mem
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	manager, err := tokens.NewManager(db,
		tokens.WithGenerator(tokens.KindVerification, fixed(VerificationToken)),
		tokens.WithGenerator(tokens.KindPasswordReset, fixed(PasswordResetToken)),
		tokens.WithGenerator(tokens.KindTwoFactor, fixed(TwoFactorCode)),
	)
	require.NoError(t, err)
	confirmations, err := tokens.NewConfirmations(db)
	require.NoError(t, err)

	mailer := &Mailer{}
	accounts, err := services.NewAccountService(db, manager, confirmations, jwtSvc, mailer,
		services.WithAccountBaseURL("https://blog.example.com"))
	require.NoError(t, err)
	passwords, err := services.NewPasswordService(db, manager, mailer, "https://blog.example.com")
	require.NoError(t, err)
	comments, err := services.NewCommentService(db)
	require.NoError(t, err)

	limiter, err := ratelimit.New(cfg.store, cfg.policies)
	require.NoError(t, err)

	health := monitoring.NewHealthManager(time.Second)
	health.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	health.RegisterReadiness(checks.Database(db))
	health.RegisterReadiness(checks.Redis(nil, false))

	router, err := api.NewRouter(api.Dependencies{
		JWT:         jwtSvc,
		Limiter:     limiter,
		Accounts:    accounts,
		Passwords:   passwords,
		Comments:    comments,
		Health:      health,
		MetricsPath: "/metrics",
	})
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		JWT:     jwtSvc,
		Limiter: limiter,
		Mailer:  mailer,
	}
}

func fixed(value string) tokens.Generator {
	return func() (string, error) { return value, nil }
}

// CreateUser inserts a user with the given password. Verified users can sign in immediately.
func (e *Env) CreateUser(email, password string, verified bool) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		Name:         "Reader",
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleUser,
	}
	if verified {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// CreatePost inserts a post; published posts accept comments.
func (e *Env) CreatePost(slug string, published bool) *models.Post {
	e.T.Helper()

	post := &models.Post{Slug: slug, Title: "Post " + slug, Body: "body"}
	if published {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
	require.NoError(e.T, e.DB.Create(post).Error)
	return post
}

// LoginResult mirrors the handler login response payload.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// Login signs in through the API and returns the issued access token.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request from DefaultClientIP, applying JSON encoding and auth headers.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.RequestFrom(DefaultClientIP, method, path, body, token)
}

// RequestFrom executes an HTTP request originating from ip.
func (e *Env) RequestFrom(ip, method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, buf)
	req.RemoteAddr = ip + ":40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
