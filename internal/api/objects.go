package api

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storagekit/storagekit/internal/storage"

	"github.com/gin-gonic/gin"
)

const defaultContentType = "application/octet-stream"

// pathParam reads "path" from the query string, then from a form or JSON
// body, in that order.
func pathParam(c *gin.Context) string {
	if p := c.Query("path"); p != "" {
		return p
	}
	if p := c.PostForm("path"); p != "" {
		return p
	}
	var in struct {
		Path string `json:"path"`
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		_ = c.ShouldBindJSON(&in)
	}
	return in.Path
}

func (h *handler) list(c *gin.Context) {
	out, err := h.svc.List(c.Request.Context(), c.Param("bucket"), c.Query("path"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, out)
}

// formFile caps the request body and returns the multipart "file" part.
// It writes the failure response itself when ok is false.
func (h *handler) formFile(c *gin.Context) (fh *multipart.FileHeader, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartSlack)
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
	case isTooLarge(err):
		h.fail(c, http.StatusRequestEntityTooLarge, "file too large")
		return nil, false
	default:
		h.fail(c, http.StatusBadRequest, "file is required")
		return nil, false
	}
	if fh.Size > h.maxUpload {
		h.fail(c, http.StatusRequestEntityTooLarge, "file too large")
		return nil, false
	}
	return fh, true
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func partContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return defaultContentType
}

func (h *handler) upload(c *gin.Context) {
	bucket := c.Param("bucket")
	fh, ok := h.formFile(c)
	if !ok {
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()

	dir := c.PostForm("path")
	setAudit(c, bucket, storage.UploadKey(dir, fh.Filename), fh.Size)
	res, err := h.svc.Upload(c.Request.Context(), bucket, dir, fh.Filename, f, fh.Size, partContentType(fh))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, res)
}

func (h *handler) update(c *gin.Context) {
	bucket := c.Param("bucket")
	fh, ok := h.formFile(c)
	if !ok {
		return
	}
	key := pathParam(c)
	if key == "" {
		h.fail(c, http.StatusBadRequest, "path is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()

	setAudit(c, bucket, key, fh.Size)
	res, err := h.svc.Update(c.Request.Context(), bucket, key, f, fh.Size, partContentType(fh))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

func (h *handler) download(c *gin.Context) {
	key := c.Query("path")
	if key == "" {
		h.fail(c, http.StatusBadRequest, "path is required")
		return
	}
	rc, info, err := h.svc.Download(c.Request.Context(), c.Param("bucket"), key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer rc.Close()

	ct := info.ContentType
	if ct == "" {
		ct = defaultContentType
	}
	c.DataFromReader(http.StatusOK, info.Size, ct, rc, map[string]string{
		"Content-Disposition": attachment(info.Name),
		"Cache-Control":       "no-store",
	})
}

// attachment renders a Content-Disposition value. Names outside printable
// ASCII use the RFC 2231 form.
func attachment(name string) string {
	for _, r := range name {
		if r < 0x20 || r > 0x7e {
			if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
				return v
			}
			return "attachment"
		}
	}
	return `attachment; filename="` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name) + `"`
}

func (h *handler) info(c *gin.Context) {
	key := c.Query("path")
	if key == "" {
		h.fail(c, http.StatusBadRequest, "path is required")
		return
	}
	f, err := h.svc.Info(c.Request.Context(), c.Param("bucket"), key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, f)
}

func (h *handler) deleteFile(c *gin.Context) {
	bucket := c.Param("bucket")
	key := pathParam(c)
	if key == "" {
		h.fail(c, http.StatusBadRequest, "path is required")
		return
	}
	setAudit(c, bucket, key, 0)
	ref, err := h.svc.Delete(c.Request.Context(), bucket, key)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ref)
}

func (h *handler) deleteFolder(c *gin.Context) {
	bucket := c.Param("bucket")
	path := pathParam(c)
	if path == "" {
		h.fail(c, http.StatusBadRequest, "path is required")
		return
	}
	setAudit(c, bucket, path, 0)
	res, err := h.svc.DeleteFolder(c.Request.Context(), bucket, path)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, res)
}

// presign accepts expiry in seconds. Absent, non-numeric and zero values
// fall back to the default lifetime.
func (h *handler) presign(c *gin.Context) {
	key := c.Query("path")
	if key == "" {
		h.fail(c, http.StatusBadRequest, "path is required")
		return
	}
	secs, _ := strconv.Atoi(c.Query("expiry"))
	if limit := int(storage.MaxPresignExpiry / time.Second); secs > limit {
		secs = limit + 1
	}
	out, err := h.svc.PresignedURL(c.Request.Context(), c.Param("bucket"), key, time.Duration(secs)*time.Second)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, out)
}
