// Package resolver maps changed entities to the storefront URLs that must be
// rewarmed. Resolvers read the url_rewrite table so the URLs match what the
// storefront actually serves, including custom rewrites.
package resolver

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity has no URL in the store scope.
	ErrNotFound = errors.New("no URL found for entity")
	// ErrUnsupportedType is returned for entity types no resolver handles.
	ErrUnsupportedType = errors.New("unsupported entity type")
)

// Resolver resolves URLs for one entity type.
type Resolver interface {
	// Supports reports whether this resolver handles the entity type.
	Supports(entityType string) bool
	// GetURLs returns the absolute URLs for the entity in the store scope.
	GetURLs(ctx context.Context, entityID int64, storeID int) ([]string, error)
}

// Composite dispatches to the first resolver that supports the entity type.
type Composite struct {
	resolvers []Resolver
}

// NewComposite constructs a Composite over the given resolvers.
func NewComposite(resolvers ...Resolver) *Composite {
	return &Composite{resolvers: resolvers}
}

// GetURLsForType resolves URLs for an entity of the given type. An entity
// with no URL in the store scope resolves to an empty list, not an error.
func (c *Composite) GetURLsForType(ctx context.Context, entityType string, entityID int64, storeID int) ([]string, error) {
	for _, r := range c.resolvers {
		if !r.Supports(entityType) {
			continue
		}
		urls, err := r.GetURLs(ctx, entityID, storeID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s %d in store %d: %w", entityType, entityID, storeID, err)
		}
		return urls, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, entityType)
}
