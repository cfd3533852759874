package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Index is the interface implemented by all package index clients.
type Index interface {
	// Name returns the index kind (e.g., "pypi", "simple").
	Name() string

	// FetchPackage retrieves package metadata.
	FetchPackage(ctx context.Context, name string) (*Package, error)

	// FetchVersions retrieves all releases of a package.
	FetchVersions(ctx context.Context, name string) ([]Version, error)

	// URLs returns the URL builder for this index.
	URLs() URLBuilder
}

// Factory creates an index instance for a given base URL.
type Factory func(baseURL string, client *Client) Index

var (
	factories = make(map[string]Factory)
	defaults  = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds an index factory.
// kind names the index protocol and defaultURL is used when New gets no base URL.
func Register(kind string, defaultURL string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
	defaults[kind] = defaultURL
}

// New creates a new index client of the given kind.
// If baseURL is empty, the default URL is used.
func New(kind string, baseURL string, client *Client) (Index, error) {
	mu.RLock()
	factory, ok := factories[kind]
	defaultURL := defaults[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown index: %s", kind)
	}

	if baseURL == "" {
		baseURL = defaultURL
	}

	if client == nil {
		client = DefaultClient()
	}

	return factory(baseURL, client), nil
}

// SupportedIndexes returns all registered index kinds, sorted.
func SupportedIndexes() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultURL returns the default base URL for an index kind.
func DefaultURL(kind string) string {
	mu.RLock()
	defer mu.RUnlock()
	return defaults[kind]
}
