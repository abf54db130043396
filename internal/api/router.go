package api

import (
	"net/http"
	"time"

	"github.com/storagekit/storagekit/internal/config"
	"github.com/storagekit/storagekit/internal/db"
	"github.com/storagekit/storagekit/internal/logging"
	"github.com/storagekit/storagekit/internal/metrics"
	"github.com/storagekit/storagekit/internal/middleware"
	"github.com/storagekit/storagekit/internal/storage"
	"github.com/storagekit/storagekit/internal/tracing"
	"github.com/storagekit/storagekit/internal/version"

	"github.com/gin-contrib/requestid"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// multipartSlack is the request body allowance on top of the file ceiling.
const multipartSlack = 1 << 20

var quietPaths = []string{"/health", "/metrics"}

// Deps are the collaborators the handlers delegate to. Audit and Metrics
// are optional.
type Deps struct {
	Storage *storage.Service
	Audit   *db.AuditLog
	Metrics *metrics.Metrics
}

type handler struct {
	svc       *storage.Service
	audit     *db.AuditLog
	logger    logging.Logger
	maxUpload int64
	publicURL string
}

func Router(cfg *config.Config, logger logging.Logger, deps Deps) http.Handler {
	h := &handler{svc: deps.Storage, audit: deps.Audit, logger: logger, maxUpload: cfg.MaxUploadBytes, publicURL: cfg.PublicURL}
	if h.maxUpload <= 0 {
		h.maxUpload = config.DefaultMaxUploadBytes
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(requestid.New())
	r.Use(ginzap.GinzapWithConfig(logger.Zap(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  quietPaths,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("request_id", requestid.Get(c))}
		},
	}))
	r.Use(middleware.Recoverer(logger))
	r.Use(tracing.Middleware(quietPaths...))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.NoRoute(func(c *gin.Context) { h.fail(c, http.StatusNotFound, "route not found") })

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "StorageKit API", "timestamp": time.Now().UTC().Format(time.RFC3339Nano)})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": version.Name, "version": version.Version})
	})
	r.GET("/docs", h.docs)
	r.GET("/docs/openapi.json", h.openAPI)

	api := r.Group("/api", middleware.APIKey(cfg.APIKey))
	if h.audit != nil {
		api.Use(h.auditTrail())
	}
	api.GET("/_audit", h.recentAudit)

	api.GET("/buckets", h.listBuckets)
	api.POST("/buckets", h.createBucket)
	api.DELETE("/buckets/:bucket", h.deleteBucket)

	api.GET("/:bucket", h.list)
	api.POST("/:bucket/upload", h.upload)
	api.GET("/:bucket/download", h.download)
	api.GET("/:bucket/info", h.info)
	api.PUT("/:bucket/update", h.update)
	api.DELETE("/:bucket/file", h.deleteFile)
	api.DELETE("/:bucket/folder", h.deleteFolder)
	api.GET("/:bucket/url", h.presign)

	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
	})(r)
}
