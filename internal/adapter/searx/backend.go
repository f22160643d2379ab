package searx

import (
	"context"

	"webscout/internal/domain"
)

// Backend abstracts the federated search collaborator.
type Backend interface {
	// Search issues one query and returns the backend's ranked results.
	Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResponse, error)
	// Name returns the backend identifier (e.g. "searxng").
	Name() string
}
