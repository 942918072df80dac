package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/inkpost/internal/middleware"
	"github.com/charlesng35/inkpost/internal/ratelimit"
	"github.com/charlesng35/inkpost/internal/services"
	apperrors "github.com/charlesng35/inkpost/pkg/errors"
	"github.com/charlesng35/inkpost/pkg/logger"
	"github.com/charlesng35/inkpost/pkg/metrics"
	"github.com/charlesng35/inkpost/pkg/response"
)

// AuthHandler manages account flows: registration, verification, sign-in and password reset.
type AuthHandler struct {
	accounts  *services.AccountService
	passwords *services.PasswordService
	limiter   *ratelimit.Limiter
}

// NewAuthHandler wires the account and password services behind the limiter.
func NewAuthHandler(accounts *services.AccountService, passwords *services.PasswordService, limiter *ratelimit.Limiter) (*AuthHandler, error) {
	switch {
	case accounts == nil:
		return nil, errors.New("auth handler: account service is required")
	case passwords == nil:
		return nil, errors.New("auth handler: password service is required")
	case limiter == nil:
		return nil, errors.New("auth handler: limiter is required")
	}
	return &AuthHandler{accounts: accounts, passwords: passwords, limiter: limiter}, nil
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"omitempty,len=6,numeric"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        any       `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !h.enforce(c, ratelimit.PolicyRegister, req.Email, registerLimitMessage) {
		return
	}

	user, err := h.accounts.Register(requestContext(c), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, "register", err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"user":    user,
		"message": "Account created, check your inbox to verify your email",
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !h.enforce(c, ratelimit.PolicyLogin, req.Email, loginLimitMessage) {
		metrics.AuthAttempts.WithLabelValues("rate_limited").Inc()
		return
	}

	result, err := h.accounts.Login(requestContext(c), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(loginFailureLabel(err)).Inc()
		respondError(c, "login", err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
		User:        result.User,
	})
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.VerifyEmail(requestContext(c), req.Email, req.Token)
	if err != nil {
		respondError(c, "verify_email", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// ResendVerification handles POST /api/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !h.enforce(c, ratelimit.PolicyResendVerification, req.Email, resendLimitMessage) {
		return
	}

	if err := h.accounts.ResendVerification(requestContext(c), req.Email); err != nil {
		respondError(c, "resend_verification", err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"message": "If the account exists and is unverified, a new confirmation email is on its way",
	})
}

// ForgotPassword handles POST /api/auth/password/forgot.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if !h.enforce(c, ratelimit.PolicyPasswordReset, req.Email, passwordResetLimitMessage) {
		return
	}

	if err := h.passwords.RequestReset(requestContext(c), req.Email); err != nil {
		respondError(c, "forgot_password", err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"message": "If an account exists for this email, a reset link has been sent",
	})
}

// ResetPassword handles POST /api/auth/password/reset.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.passwords.ResetPassword(requestContext(c), services.ResetPasswordInput{
		Email:    req.Email,
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, "reset_password", err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password updated"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	user, err := h.accounts.Me(requestContext(c), userID)
	if err != nil {
		respondError(c, "me", err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// enforce rate limits an email-bearing request by client IP and the submitted address.
func (h *AuthHandler) enforce(c *gin.Context, policy, email string, message middleware.MessageFunc) bool {
	return middleware.Enforce(c, h.limiter, policy, ratelimit.Identity(c.ClientIP(), email), message)
}

func loginFailureLabel(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTwoFactorRequired):
		return "two_factor_required"
	case errors.Is(err, apperrors.ErrEmailNotVerified):
		return "unverified"
	case errors.Is(err, apperrors.ErrInvalidCredentials), errors.Is(err, apperrors.ErrInvalidToken):
		return "failure"
	}
	return "error"
}

// respondError renders AppErrors as-is and hides everything else behind a generic 500.
func respondError(c *gin.Context, op string, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		response.Error(c, appErr)
		return
	}

	logger.WithModule("handlers").Error("request failed",
		zap.String("op", op),
		zap.Error(err),
	)
	response.Error(c, apperrors.ErrInternalServer)
}
