package usage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsbridge-ai/opsbridge/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	tr, err := New(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []models.UsageRecord{
		{Model: "llama3", Route: "/api/chat", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CreatedAt: now},
		{Model: "llama3", Route: "/api/chat", PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30, CreatedAt: now},
		{Model: "llava", Route: "/api/vision", PromptTokens: 40, CompletionTokens: 8, TotalTokens: 48, CreatedAt: now},
	}
	for _, rec := range records {
		if err := tr.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 models, got %d", len(summaries))
	}
	// Ordered by total tokens descending.
	if summaries[0].Model != "llava" || summaries[0].TotalTokens != 48 {
		t.Errorf("unexpected first summary: %+v", summaries[0])
	}
	if summaries[1].RequestCount != 2 || summaries[1].TotalTokens != 45 {
		t.Errorf("unexpected llama3 summary: %+v", summaries[1])
	}
}

func TestTotalSince(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	old := models.UsageRecord{Model: "llama3", Route: "/api/chat", TotalTokens: 100, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := models.UsageRecord{Model: "llama3", Route: "/api/chat", TotalTokens: 7, CreatedAt: time.Now().UTC()}
	for _, rec := range []models.UsageRecord{old, fresh} {
		if err := tr.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	total, err := tr.Total(ctx, "llama3", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if total != 7 {
		t.Errorf("expected 7 recent tokens, got %d", total)
	}

	all, err := tr.Total(ctx, "", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if all != 107 {
		t.Errorf("expected 107 total tokens, got %d", all)
	}
}
