package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/storagekit/storagekit/internal/config"
)

// Backend errors. Drivers wrap them together with the SDK error so callers
// match with errors.Is while the SDK message is kept.
var (
	ErrObjectNotFound    = errors.New("object not found")
	ErrBucketNotFound    = errors.New("bucket not found")
	ErrBucketExists      = errors.New("bucket already exists")
	ErrBucketNotEmpty    = errors.New("bucket not empty")
	ErrInvalidBucketName = errors.New("invalid bucket name")
)

// DefaultRegion is used for bucket creation when no region is configured.
const DefaultRegion = "us-east-1"

type BucketInfo struct {
	Name         string
	CreationDate time.Time
}

// ObjectInfo describes either an object or, in non-recursive listings, a
// common prefix (IsPrefix set, Key ending in "/").
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	IsPrefix     bool
}

// Store is the subset of an S3-compatible client the gateway relies on.
type Store interface {
	ListBuckets(ctx context.Context) ([]BucketInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, region string) error
	DeleteBucket(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, bucket, prefix string, recursive bool) ([]ObjectInfo, error)
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	// DeleteObjects removes keys in bulk. The returned error joins the
	// per-key failures the backend reported.
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// New builds the Store selected by cfg.Driver.
func New(cfg config.S3Config) (Store, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinio(cfg)
	case "aws":
		return NewAWS(cfg)
	case "memory":
		base := EndpointURL(cfg)
		if base == "" {
			base = "http://localhost"
		}
		return NewMemory(base), nil
	default:
		return nil, fmt.Errorf("unknown s3 driver %q", cfg.Driver)
	}
}

func normalizeEndpoint(endpoint string, useSSL bool) (host string, secure bool) {
	secure = useSSL
	if endpoint == "" {
		return "", secure
	}
	// If endpoint contains scheme, parse and strip it; prefer scheme over useSSL flag
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		if u, err := url.Parse(endpoint); err == nil {
			if u.Scheme == "https" {
				secure = true
			} else if u.Scheme == "http" {
				secure = false
			}
			return u.Host, secure
		}
	}
	return strings.TrimRight(endpoint, "/"), secure
}

// endpointWithPort appends port to host unless it is a default HTTP(S) port
// or host already names one.
func endpointWithPort(host string, port int) string {
	if host == "" || port <= 0 || port == 80 || port == 443 {
		return host
	}
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.HasSuffix(host, "]") {
		return host
	}
	return host + ":" + strconv.Itoa(port)
}

// EndpointURL renders the backend address as a URL.
func EndpointURL(cfg config.S3Config) string {
	host, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if host == "" {
		return ""
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return scheme + "://" + endpointWithPort(host, cfg.Port)
}
