package search

import (
	"context"
	"strings"
	"testing"
)

func TestSearchStub(t *testing.T) {
	p := New("", "")

	results, err := p.Search(context.Background(), "disk usage alert")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one placeholder result")
	}
	if !strings.Contains(results[0].Snippet, "disk usage alert") {
		t.Errorf("expected query echoed in snippet, got %q", results[0].Snippet)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	p := New("https://search.example.com", "key")
	if _, err := p.Search(context.Background(), "   "); err == nil {
		t.Error("expected error for empty query")
	}
}
