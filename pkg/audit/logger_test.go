package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opsbridge-ai/opsbridge/pkg/models"
)

func tempCfg() models.AuditConfig {
	return models.AuditConfig{
		Enabled:       true,
		RetentionDays: 30,
		MaxBodySize:   1024,
		Include:       []string{"prompts", "responses"},
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "audit.db"), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.AuditEntry {
	return models.AuditEntry{
		RequestID:        "req-001",
		Route:            "/api/chat",
		Model:            "llama3",
		RequestBody:      `{"model":"llama3","prompt":"hi"}`,
		ResponseBody:     `{"model":"llama3","reply":"hello"}`,
		StatusCode:       200,
		PromptTokens:     10,
		CompletionTokens: 20,
		TotalTokens:      30,
		LatencyMs:        150,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg())
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry()); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{Route: "/api/chat"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.RequestID != "req-001" || e.Model != "llama3" || e.TotalTokens != 30 {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestIncludeFiltering(t *testing.T) {
	cfg := tempCfg()
	cfg.Include = []string{"responses"} // prompts excluded
	l := mustNew(t, cfg)
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry()); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].RequestBody != "" {
		t.Error("expected prompt body excluded")
	}
	if entries[0].ResponseBody == "" {
		t.Error("expected response body included")
	}
}

func TestBodyTruncation(t *testing.T) {
	cfg := tempCfg()
	cfg.MaxBodySize = 8
	l := mustNew(t, cfg)
	ctx := context.Background()

	e := sampleEntry()
	e.RequestBody = strings.Repeat("x", 100)
	if err := l.Log(ctx, e); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries[0].RequestBody) != 8 {
		t.Errorf("expected truncation to 8 bytes, got %d", len(entries[0].RequestBody))
	}
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg()
	cfg.RetentionDays = 7
	l := mustNew(t, cfg)
	ctx := context.Background()

	old := sampleEntry()
	old.RequestID = "req-old"
	old.CreatedAt = time.Now().AddDate(0, 0, -30)
	if err := l.Log(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := sampleEntry()
	fresh.RequestID = "req-fresh"
	if err := l.Log(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row cleaned, got %d", n)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].RequestID != "req-fresh" {
		t.Errorf("unexpected surviving entries: %+v", entries)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg())
	ctx := context.Background()

	for i, route := range []string{"/api/chat", "/api/chat", "/api/ssh"} {
		e := sampleEntry()
		e.RequestID = string(rune('a' + i))
		e.Route = route
		if err := l.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 route groups, got %d", len(stats))
	}
}
