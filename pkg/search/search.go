// Package search is a placeholder for a future search integration.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsbridge-ai/opsbridge/pkg/models"
)

// Provider answers search queries. The current implementation returns a
// fixed structured result; the endpoint and API key are accepted so a
// real backend can be dropped in without changing callers.
type Provider struct {
	endpoint string
	apiKey   string
}

// New returns a Provider. Empty endpoint and key are valid for the stub.
func New(endpoint, apiKey string) *Provider {
	return &Provider{endpoint: endpoint, apiKey: apiKey}
}

// Search returns placeholder results for the query.
func (p *Provider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	return []models.SearchResult{
		{
			Title:   "Search is not yet integrated",
			URL:     "",
			Snippet: fmt.Sprintf("No search backend is configured; %q was not looked up.", query),
		},
	}, nil
}
