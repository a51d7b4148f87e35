package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/entityfs/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/entityfs/internal/service/archive"
	"github.com/GriffinCanCode/entityfs/internal/shared/errs"
)

// errBadRequest marks malformed query parameters.
var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		invalid     *errs.InvalidPathError
		collision   *errs.NameCollisionError
		canceled    *errs.ActionCanceledError
		unsupported *errs.UnsupportedPlatformError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &canceled),
		errors.Is(err, doublestar.ErrBadPattern), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.As(err, &collision):
		return http.StatusConflict
	case errors.Is(err, archive.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &unsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an error response and logs server-side failures.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			tracing.Field(c.Request.Context()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
