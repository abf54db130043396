package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/storagekit/storagekit/internal/config"
	"github.com/storagekit/storagekit/internal/logging"
	"github.com/storagekit/storagekit/internal/models"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testLogger() logging.Logger {
	core, _ := observer.New(zapcore.InfoLevel)
	return logging.NewWithCore(core)
}

func TestOpenDisabled(t *testing.T) {
	a, err := Open(&config.Config{DBDriver: "none"}, testLogger())
	if err != nil || a != nil {
		t.Fatalf("expected nil audit log, got %v, %v", a, err)
	}
}

func TestOpenPostgresNeedsDSN(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "postgres"}, testLogger())
	if !errors.Is(err, ErrDSNRequired) {
		t.Fatalf("expected ErrDSNRequired, got %v", err)
	}
}

func TestAuditRecordAndRecent(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "sub", "audit.db")}
	a, err := Open(cfg, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"upload", "delete", "delete_folder"} {
		e := &models.AuditEntry{Time: base.Add(time.Duration(i) * time.Minute), Action: action, Bucket: "docs", Path: "a.txt", Status: 200}
		if err := a.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", action, err)
		}
	}

	got, err := a.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Action != "delete_folder" || got[1].Action != "delete" {
		t.Fatalf("unexpected order: %s, %s", got[0].Action, got[1].Action)
	}

	all, err := a.Recent(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d (%v)", len(all), err)
	}
}
