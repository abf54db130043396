package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storagekit/storagekit/internal/config"
	"github.com/storagekit/storagekit/internal/logging"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStripSchemeAndInsecure(t *testing.T) {
	cases := []struct {
		in, host string
		insecure bool
	}{
		{"http://collector:4318", "collector:4318", true},
		{"https://otel.example.com", "otel.example.com", false},
		{"localhost:4318", "localhost:4318", true},
		{"otel.example.com:4318", "otel.example.com:4318", false},
	}
	for _, c := range cases {
		if got := stripScheme(c.in); got != c.host {
			t.Fatalf("stripScheme(%q)=%q want %q", c.in, got, c.host)
		}
		if got := isInsecure(c.in); got != c.insecure {
			t.Fatalf("isInsecure(%q)=%v want %v", c.in, got, c.insecure)
		}
	}
}

func TestInitDisabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	shutdown, err := Init(context.Background(), config.TracingConfig{}, logging.NewWithCore(core))
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestMiddlewareRecordsRouteSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware("/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/:bucket", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/docs?path=a", nil))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "GET /api/:bucket" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
}
