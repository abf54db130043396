package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (h *handler) listBuckets(c *gin.Context) {
	items, err := h.svc.ListBuckets(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, items)
}

func (h *handler) createBucket(c *gin.Context) {
	var in struct {
		Bucket string `json:"bucket" form:"bucket"`
	}
	_ = c.ShouldBind(&in)
	name := strings.TrimSpace(in.Bucket)
	if name == "" {
		h.fail(c, http.StatusBadRequest, "bucket is required")
		return
	}
	setAudit(c, name, "", 0)
	if err := h.svc.CreateBucket(c.Request.Context(), name); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"bucket": name})
}

func (h *handler) deleteBucket(c *gin.Context) {
	name := c.Param("bucket")
	if err := h.svc.DeleteBucket(c.Request.Context(), name); err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"bucket": name})
}
