package api

import (
	"errors"
	"net/http"

	"github.com/storagekit/storagekit/internal/s3"
	"github.com/storagekit/storagekit/internal/storage"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// envelope is the body of every JSON response under /api.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(c *gin.Context, code int, data any) {
	c.Header("Cache-Control", "no-store")
	c.JSON(code, envelope{Success: true, Data: data})
}

func (h *handler) fail(c *gin.Context, code int, msg string) {
	span := trace.SpanFromContext(c.Request.Context())
	span.AddEvent("error", trace.WithAttributes(attribute.Int("code", code), attribute.String("message", msg)))
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", code, "error", msg, "method", c.Request.Method, "path", c.Request.URL.Path, "request_id", requestid.Get(c))
	}
	c.AbortWithStatusJSON(code, envelope{Success: false, Error: msg})
}

// respondError maps a storage failure onto a status code.
func (h *handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, s3.ErrObjectNotFound):
		h.fail(c, http.StatusNotFound, "file not found")
	case errors.Is(err, s3.ErrBucketNotFound):
		h.fail(c, http.StatusNotFound, "bucket not found")
	case errors.Is(err, s3.ErrBucketExists), errors.Is(err, s3.ErrBucketNotEmpty):
		h.fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, s3.ErrInvalidBucketName), errors.Is(err, storage.ErrInvalidExpiry):
		h.fail(c, http.StatusBadRequest, err.Error())
	default:
		h.fail(c, http.StatusInternalServerError, err.Error())
	}
}
