package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

// retryAfterSeconds is advertised on errors a handheld may simply resend
const retryAfterSeconds = "2"

// APIErrorResponse is the error body of every endpoint
type APIErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Retryable bool              `json:"retryable"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp string            `json:"timestamp"`
	Path      string            `json:"path"`
}

func newErrorResponse(c *gin.Context, appErr *errors.AppError) APIErrorResponse {
	return APIErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		Retryable: appErr.Retryable(),
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request.URL.Path,
	}
}

// ErrorHandler renders errors attached with c.Error when the handler wrote nothing
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, logger, errors.FromError(c.Errors.Last().Err))
	}
}

// ErrorResponder writes AppErrors for a single request
type ErrorResponder struct {
	ctx    *gin.Context
	logger *slog.Logger
}

// NewErrorResponder creates a new ErrorResponder
func NewErrorResponder(ctx *gin.Context, logger *slog.Logger) *ErrorResponder {
	return &ErrorResponder{ctx: ctx, logger: logger}
}

// RespondWithError sends err; anything that is not an AppError becomes a 500
func (r *ErrorResponder) RespondWithError(err error) {
	writeError(r.ctx, r.logger, errors.FromError(err))
}

// RespondWithAppError sends appErr
func (r *ErrorResponder) RespondWithAppError(appErr *errors.AppError) {
	writeError(r.ctx, r.logger, appErr)
}

func writeError(c *gin.Context, logger *slog.Logger, appErr *errors.AppError) {
	level := slog.LevelWarn
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{
		"code", appErr.Code,
		"status", appErr.HTTPStatus,
		"route", c.FullPath(),
		"requestId", GetRequestID(c),
		"userId", c.GetHeader(HeaderUserID),
	}
	if appErr.Err != nil {
		attrs = append(attrs, "error", appErr.Err.Error())
	}
	if len(appErr.Details) > 0 {
		attrs = append(attrs, "details", appErr.Details)
	}
	logger.Log(c.Request.Context(), level, appErr.Message, attrs...)

	if appErr.Retryable() {
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.JSON(appErr.HTTPStatus, newErrorResponse(c, appErr))
}

// AbortWithAppError aborts the chain with appErr
func AbortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, newErrorResponse(c, appErr))
}
