package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/warmfront/warmfront/internal/database"
	"github.com/warmfront/warmfront/internal/store"
)

// CategoryResolver resolves category page URLs.
type CategoryResolver struct {
	db     database.Querier
	stores *store.Manager
}

// NewCategoryResolver constructs a CategoryResolver.
func NewCategoryResolver(db database.Querier, stores *store.Manager) *CategoryResolver {
	return &CategoryResolver{db: db, stores: stores}
}

func (r *CategoryResolver) Supports(entityType string) bool {
	return entityType == "category"
}

func (r *CategoryResolver) GetURLs(ctx context.Context, entityID int64, storeID int) ([]string, error) {
	st, ok := r.stores.ByID(storeID)
	if !ok {
		return nil, fmt.Errorf("unknown store %d", storeID)
	}

	path, err := requestPath(ctx, r.db, "category", entityID, storeID)
	if err != nil {
		return nil, err
	}
	return []string{st.URL(path)}, nil
}

// CMSPageResolver resolves CMS page URLs. Pages assigned to the all-stores
// scope carry store_id 0 in url_rewrite, so the lookup falls back to that
// scope when the store-specific rewrite is missing.
type CMSPageResolver struct {
	db     database.Querier
	stores *store.Manager
}

// NewCMSPageResolver constructs a CMSPageResolver.
func NewCMSPageResolver(db database.Querier, stores *store.Manager) *CMSPageResolver {
	return &CMSPageResolver{db: db, stores: stores}
}

func (r *CMSPageResolver) Supports(entityType string) bool {
	return entityType == "cms_page"
}

func (r *CMSPageResolver) GetURLs(ctx context.Context, entityID int64, storeID int) ([]string, error) {
	st, ok := r.stores.ByID(storeID)
	if !ok {
		return nil, fmt.Errorf("unknown store %d", storeID)
	}

	path, err := requestPath(ctx, r.db, "cms-page", entityID, storeID)
	if errors.Is(err, ErrNotFound) {
		path, err = requestPath(ctx, r.db, "cms-page", entityID, 0)
	}
	if err != nil {
		return nil, err
	}
	return []string{st.URL(path)}, nil
}
