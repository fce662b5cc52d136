// Package source implements the news-source catalog and its fetch strategies.
// A source is tagged with a kind (feed or api); the registry resolves the kind
// to a concrete fetcher so the pipeline never branches on it.
package source

import (
	"context"
	"fmt"

	"MockMate/internal/domain"
)

// Fetcher is a single fetch strategy. Implementations isolate failure to the
// given source: an error return never carries state that aborts other sources.
type Fetcher interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context, src domain.Source, limit int) ([]domain.RawItem, error)
}

// Registry keeps a mapping from source kinds to their fetch strategies.
type Registry struct {
	fetchers map[domain.SourceKind]Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[domain.SourceKind]Fetcher{}}
}

// Register adds or replaces a fetch strategy.
func (r *Registry) Register(f Fetcher) {
	if r.fetchers == nil {
		r.fetchers = map[domain.SourceKind]Fetcher{}
	}
	r.fetchers[f.Kind()] = f
}

// Resolve returns the fetcher for a source kind or an error if it is absent.
func (r *Registry) Resolve(kind domain.SourceKind) (Fetcher, error) {
	if f, ok := r.fetchers[kind]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("source kind %s is not registered", kind)
}
