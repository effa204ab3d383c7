package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"routingcore/internal/config"
	"routingcore/internal/fixtures"
	"routingcore/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ROUTINGCORE_BLOB_FS_ROOT", filepath.Join(t.TempDir(), "blobs"))
	t.Setenv("ROUTINGCORE_SEED", "true")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestNewServerSeedsAndServes(t *testing.T) {
	cfg := testConfig(t)
	srv, err := newServer(context.Background(), cfg, logging.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	if got := len(srv.service.List()); got != 8 {
		t.Fatalf("expected seeded registry, got %d operations", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/operations/"+fixtures.Cutting+"/sequence", nil)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body struct {
		Operations []json.RawMessage `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Operations) != 6 {
		t.Fatalf("unexpected sequence body %s (%v)", rec.Body.String(), err)
	}

	req = httptest.NewRequest(http.MethodPost, "/reports/snapshot", nil)
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("snapshot export: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "routingcore_service_operations_total") {
		t.Fatalf("expected service metrics exposed")
	}
}

func TestNewServerSkipsSeedWhenPopulated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "routing.db")

	first, err := newServer(context.Background(), cfg, logging.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, _, err := first.service.Remove(context.Background(), fixtures.Packaging, true); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := newServer(context.Background(), cfg, logging.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	op, ok := second.service.Get(fixtures.Packaging)
	if !ok || op.IsActive {
		t.Fatalf("expected persisted deactivation to survive restart, got %+v", op)
	}
}

func TestCLIRejectsBadInput(t *testing.T) {
	var stderr bytes.Buffer
	if code := cli([]string{"-nope"}, &stderr); code != 2 {
		t.Fatalf("expected usage exit code, got %d", code)
	}
	stderr.Reset()
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("http: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if code := cli([]string{"-config", bad}, &stderr); code != 2 {
		t.Fatalf("expected config error exit code, got %d (%s)", code, stderr.String())
	}
}

func TestNewServerRejectsUnknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "cassandra"
	if _, err := newServer(context.Background(), cfg, logging.Nop(), prometheus.NewRegistry()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
