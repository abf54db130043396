package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/:bucket/info", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, p := range []string{"/api/a/info?path=x", "/api/b/info?path=y"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/api/:bucket/info", "GET", "404")); got != 2 {
		t.Fatalf("route counter=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Fatalf("unmatched counter=%v want 1", got)
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("upload", 10, nil, time.Millisecond)
	m.Observe("upload", 5, errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(m.storageBytes.WithLabelValues("upload")); got != 10 {
		t.Fatalf("bytes=%v want 10", got)
	}
	if got := testutil.ToFloat64(m.storageOps.WithLabelValues("upload", "error")); got != 1 {
		t.Fatalf("errors=%v want 1", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Observe("list", 0, nil, time.Millisecond)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "storagekit_storage_ops_total") {
		t.Fatalf("unexpected metrics output: %d", rec.Code)
	}
}

func TestRegistryIsPrivate(t *testing.T) {
	a, b := New(), New()
	a.Observe("upload", 1, nil, time.Millisecond)
	a.Observe("upload", 1, errors.New("boom"), time.Millisecond)

	n, err := testutil.GatherAndCount(a.Registry(), "storagekit_storage_ops_total")
	if err != nil || n != 2 {
		t.Fatalf("ops series=%d err=%v want 2", n, err)
	}
	if n, err = testutil.GatherAndCount(b.Registry(), "storagekit_storage_ops_total"); err != nil || n != 0 {
		t.Fatalf("second registry ops series=%d err=%v want 0", n, err)
	}
	if n, err = testutil.GatherAndCount(prometheus.DefaultGatherer, "storagekit_storage_ops_total"); err != nil || n != 0 {
		t.Fatalf("default registry ops series=%d err=%v want 0", n, err)
	}
	if n, err = testutil.GatherAndCount(a.Registry(), "go_goroutines"); err != nil || n != 1 {
		t.Fatalf("go collector series=%d err=%v want 1", n, err)
	}
}
