package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/inkpost/pkg/errors"
)

// Response is the envelope used by every JSON endpoint except rate limit rejections.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo holds error details sent to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TooManyRequests is the body of a 429 response.
type TooManyRequests struct {
	Message         string `json:"message"`
	WaitTimeSeconds int    `json:"waitTimeSeconds"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}

// RateLimited aborts the request with 429 and a Retry-After header.
func RateLimited(c *gin.Context, message string, waitSeconds int) {
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	if message == "" {
		message = appErrors.ErrRateLimit.Message
	}

	c.Header("Retry-After", strconv.Itoa(waitSeconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, TooManyRequests{
		Message:         message,
		WaitTimeSeconds: waitSeconds,
	})
}
