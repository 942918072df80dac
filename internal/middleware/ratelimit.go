package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/inkpost/internal/ratelimit"
	"github.com/charlesng35/inkpost/pkg/errors"
	"github.com/charlesng35/inkpost/pkg/logger"
	"github.com/charlesng35/inkpost/pkg/response"
)

// MessageFunc renders the client-facing message of a rate limited response.
type MessageFunc func(waitSeconds int) string

// IdentityFunc derives the limiter identity of a request.
type IdentityFunc func(c *gin.Context) string

// ClientIdentity keys requests by client IP and, when authenticated, the user's email.
func ClientIdentity(c *gin.Context) string {
	return ratelimit.Identity(c.ClientIP(), c.GetString(CtxEmailKey))
}

// RateLimit returns a middleware enforcing policy for every request of the route.
func RateLimit(limiter *ratelimit.Limiter, policy string, identity IdentityFunc, message MessageFunc) gin.HandlerFunc {
	if identity == nil {
		identity = ClientIdentity
	}
	return func(c *gin.Context) {
		if !Enforce(c, limiter, policy, identity(c), message) {
			return
		}
		c.Next()
	}
}

// Enforce checks identity against policy, writing the rate limit headers. When the request is
// rejected it aborts with 429 and returns false. Handlers call it directly when the identity
// depends on the request body.
func Enforce(c *gin.Context, limiter *ratelimit.Limiter, policy, identity string, message MessageFunc) bool {
	decision, err := limiter.Check(requestContext(c), policy, identity)
	if err != nil {
		logger.WithModule("ratelimit").Error("rate limit check failed",
			zap.String("policy", policy),
			zap.Error(err),
		)
		response.Error(c, errors.ErrInternalServer)
		c.Abort()
		return false
	}

	wait := decision.WaitSeconds(time.Now())
	c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(wait))

	if decision.Allowed {
		return true
	}

	text := ""
	if message != nil {
		text = message(wait)
	}
	response.RateLimited(c, text, wait)
	return false
}

func requestContext(c *gin.Context) context.Context {
	if c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}
