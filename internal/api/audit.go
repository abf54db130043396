package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/storagekit/storagekit/internal/models"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

const (
	auditBucketKey = "audit.bucket"
	auditPathKey   = "audit.path"
	auditBytesKey  = "audit.bytes"

	auditTimeout = 5 * time.Second

	// defaultAuditLimit applies when ?limit is absent or not a number.
	defaultAuditLimit = 100
)

// actions names the audited routes, keyed by method and route template.
var actions = map[string]string{
	"POST /api/buckets":           "create_bucket",
	"DELETE /api/buckets/:bucket": "delete_bucket",
	"POST /api/:bucket/upload":    "upload",
	"PUT /api/:bucket/update":     "update",
	"DELETE /api/:bucket/file":    "delete_file",
	"DELETE /api/:bucket/folder":  "delete_folder",
}

// setAudit records the target of a mutating request for the audit trail.
func setAudit(c *gin.Context, bucket, path string, bytes int64) {
	c.Set(auditBucketKey, bucket)
	c.Set(auditPathKey, path)
	c.Set(auditBytesKey, bytes)
}

// auditTrail writes one row per authenticated mutating request, failed
// ones included.
func (h *handler) auditTrail() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action, ok := actions[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}
		bucket := c.GetString(auditBucketKey)
		if bucket == "" {
			bucket = c.Param("bucket")
		}
		e := &models.AuditEntry{
			Time:      time.Now().UTC(),
			Action:    action,
			Bucket:    bucket,
			Path:      c.GetString(auditPathKey),
			Status:    c.Writer.Status(),
			RequestID: requestid.Get(c),
			RemoteIP:  c.ClientIP(),
			Bytes:     c.GetInt64(auditBytesKey),
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), auditTimeout)
		defer cancel()
		if err := h.audit.Record(ctx, e); err != nil {
			h.logger.Error("audit record failed", "action", action, "bucket", bucket, "error", err)
		}
	}
}

func (h *handler) recentAudit(c *gin.Context) {
	if h.audit == nil {
		h.fail(c, http.StatusNotFound, "audit log is disabled")
		return
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		limit = defaultAuditLimit
	}
	rows, err := h.audit.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, rows)
}
