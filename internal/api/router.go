package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/inkpost/internal/auth"
	"github.com/charlesng35/inkpost/internal/handlers"
	"github.com/charlesng35/inkpost/internal/middleware"
	"github.com/charlesng35/inkpost/internal/monitoring"
	"github.com/charlesng35/inkpost/internal/ratelimit"
	"github.com/charlesng35/inkpost/internal/services"
)

// Dependencies are the long-lived services the router dispatches to.
type Dependencies struct {
	JWT       *auth.JWTService
	Limiter   *ratelimit.Limiter
	Accounts  *services.AccountService
	Passwords *services.PasswordService
	Comments  *services.CommentService

	// Health is optional; without it the health routes answer 404 "disabled".
	Health *monitoring.HealthManager

	// MetricsPath mounts the prometheus handler when non-empty.
	MetricsPath string
}

func (d Dependencies) validate() error {
	switch {
	case d.JWT == nil:
		return errors.New("api: jwt service must be provided")
	case d.Limiter == nil:
		return errors.New("api: rate limiter must be provided")
	case d.Accounts == nil, d.Passwords == nil, d.Comments == nil:
		return errors.New("api: account, password and comment services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	authHandler, err := handlers.NewAuthHandler(deps.Accounts, deps.Passwords, deps.Limiter)
	if err != nil {
		return nil, err
	}
	commentHandler, err := handlers.NewCommentHandler(deps.Comments)
	if err != nil {
		return nil, err
	}

	registerHealthRoutes(r, deps.Health)

	// Email-bearing auth routes enforce their policy inside the handler, after binding.
	public := r.Group("/api/auth")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
		public.POST("/verify-email", authHandler.VerifyEmail)
		public.POST("/resend-verification", authHandler.ResendVerification)
		public.POST("/password/forgot", authHandler.ForgotPassword)
		public.POST("/password/reset", authHandler.ResetPassword)
	}

	r.GET("/api/posts/:slug/comments", commentHandler.List)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	api.GET("/auth/me", authHandler.Me)
	api.POST("/posts/:slug/comments",
		middleware.RateLimit(deps.Limiter, ratelimit.PolicyComment, middleware.ClientIdentity, handlers.CommentLimitMessage),
		commentHandler.Create,
	)
	api.POST("/comments",
		middleware.RateLimit(deps.Limiter, ratelimit.PolicyLegacyComment, middleware.ClientIdentity, handlers.CommentLimitMessage),
		commentHandler.CreateLegacy,
	)

	if deps.MetricsPath != "" {
		r.GET(deps.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	if manager == nil {
		r.GET("/health", handlers.Disabled)
		r.GET("/health/live", handlers.Disabled)
		r.GET("/health/ready", handlers.Disabled)
		return
	}

	h := handlers.NewHealthHandler(manager)
	r.GET("/health", h.Summary)
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
}
