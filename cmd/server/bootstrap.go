package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/inkpost/internal/api"
	"github.com/charlesng35/inkpost/internal/app"
	"github.com/charlesng35/inkpost/internal/app/maintenance"
	iauth "github.com/charlesng35/inkpost/internal/auth"
	"github.com/charlesng35/inkpost/internal/cache"
	"github.com/charlesng35/inkpost/internal/database"
	"github.com/charlesng35/inkpost/internal/monitoring"
	"github.com/charlesng35/inkpost/internal/monitoring/checks"
	"github.com/charlesng35/inkpost/internal/ratelimit"
	"github.com/charlesng35/inkpost/internal/services"
	"github.com/charlesng35/inkpost/internal/tokens"
	"github.com/charlesng35/inkpost/pkg/logger"
	"github.com/charlesng35/inkpost/pkg/mail"
)

// maintenanceStaleAfter marks the cleanup jobs unhealthy when they have not succeeded for this long.
const maintenanceStaleAfter = 3 * time.Hour

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *cache.RedisStore
	Store   cache.Store
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises databases, counter stores, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	var hitPurger maintenance.HitPurger

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisOptions()); err != nil {
			log.Warn("redis unavailable; falling back to database counters", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	if stack.Redis != nil {
		stack.Store = stack.Redis
	} else {
		stack.Store = dbStore
		hitPurger = dbStore
	}

	policies, err := cfg.RateLimit.PolicyTable()
	if err != nil {
		return nil, fmt.Errorf("load rate limit policies: %w", err)
	}
	limiter, err := ratelimit.New(stack.Store, policies,
		ratelimit.WithTimeout(cfg.RateLimit.Timeout),
		ratelimit.WithLogger(logger.WithModule("ratelimit")),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise rate limiter: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	manager, err := tokens.NewManager(stack.DB, tokens.WithTTLs(cfg.Tokens.TokenTTLs()))
	if err != nil {
		return nil, fmt.Errorf("initialise token manager: %w", err)
	}
	confirmations, err := tokens.NewConfirmations(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise two factor confirmations: %w", err)
	}

	accounts, err := services.NewAccountService(stack.DB, manager, confirmations, jwtSvc, mailer,
		services.WithAccountBaseURL(cfg.Tokens.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("initialise account service: %w", err)
	}
	passwords, err := services.NewPasswordService(stack.DB, manager, mailer, cfg.Tokens.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("initialise password service: %w", err)
	}
	comments, err := services.NewCommentService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise comment service: %w", err)
	}

	tracker := monitoring.NewJobTracker()
	stack.Cleaner = maintenance.NewCleaner(manager, hitPurger,
		maintenance.WithTokenSchedule(cfg.Maintenance.TokenSchedule),
		maintenance.WithRateLimitSchedule(cfg.Maintenance.RateLimitSchedule),
		maintenance.WithHitRetention(hitRetention(cfg.Maintenance.HitRetention, policies, log)),
		maintenance.WithTracker(tracker),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	deps := api.Dependencies{
		JWT:       jwtSvc,
		Limiter:   limiter,
		Accounts:  accounts,
		Passwords: passwords,
		Comments:  comments,
	}
	if cfg.Monitoring.Health.Enabled {
		deps.Health = buildHealthManager(cfg, stack, tracker)
	}
	if cfg.Monitoring.Prometheus.Enabled {
		deps.MetricsPath = cfg.Monitoring.Prometheus.Endpoint
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// hitRetention keeps counted hits for at least the longest policy window so the purge never
// drops events that still count against a limit.
func hitRetention(configured time.Duration, policies []ratelimit.Policy, log *zap.Logger) time.Duration {
	longest := ratelimit.LongestWindow(policies)
	if configured >= longest {
		return configured
	}
	if configured > 0 {
		log.Warn("maintenance.hit_retention is shorter than the longest rate limit window; extending it",
			zap.Duration("configured", configured),
			zap.Duration("retention", longest))
	}
	return longest
}

func buildHealthManager(cfg *app.Config, stack *runtimeStack, tracker *monitoring.JobTracker) *monitoring.HealthManager {
	manager := monitoring.NewHealthManager(cfg.Monitoring.Health.Timeout)
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(checks.Database(stack.DB))
	manager.RegisterReadiness(checks.Maintenance(tracker, maintenanceStaleAfter))

	var pinger checks.Pinger
	if stack.Redis != nil {
		pinger = stack.Redis
	}
	manager.RegisterReadiness(checks.Redis(pinger, cfg.Cache.Redis.Enabled))
	return manager
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		if stopCtx := s.Cleaner.Stop(); stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
		s.Cleaner = nil
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Prepare(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("prepare database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
