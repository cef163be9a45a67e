package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/database"
	"github.com/warmfront/warmfront/internal/store"
)

// ProductResolver resolves product URLs, including the URLs of any parent
// products (configurable, grouped, bundle) the product is sold under, since
// those pages render the child's data too.
type ProductResolver struct {
	db     database.Querier
	stores *store.Manager
	logger *zap.Logger
}

// NewProductResolver constructs a ProductResolver.
func NewProductResolver(db database.Querier, stores *store.Manager, logger *zap.Logger) *ProductResolver {
	return &ProductResolver{db: db, stores: stores, logger: logger}
}

func (r *ProductResolver) Supports(entityType string) bool {
	return entityType == "product"
}

func (r *ProductResolver) GetURLs(ctx context.Context, entityID int64, storeID int) ([]string, error) {
	st, ok := r.stores.ByID(storeID)
	if !ok {
		return nil, fmt.Errorf("unknown store %d", storeID)
	}

	ids := []int64{entityID}
	parents, err := r.parentIDs(ctx, entityID)
	if err != nil {
		return nil, err
	}
	ids = append(ids, parents...)

	var urls []string
	for _, id := range ids {
		path, err := requestPath(ctx, r.db, "product", id, storeID)
		if errors.Is(err, ErrNotFound) {
			// Parents without a visible URL (e.g. disabled) are skipped;
			// a product with no URL of its own still resolves through them.
			continue
		}
		if err != nil {
			return nil, err
		}
		urls = append(urls, st.URL(path))
	}

	if len(urls) == 0 {
		return nil, ErrNotFound
	}
	return urls, nil
}

// parentIDs returns the composite products the given product belongs to.
func (r *ProductResolver) parentIDs(ctx context.Context, entityID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT parent_id FROM catalog_product_relation WHERE child_id = $1`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("select parents of product %d: %w", entityID, err)
	}
	defer rows.Close()

	var parents []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan parent id: %w", err)
		}
		parents = append(parents, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parent ids: %w", err)
	}
	return parents, nil
}

// requestPath returns the canonical (non-redirect) rewrite path for an entity
// in a store scope.
func requestPath(ctx context.Context, db database.Querier, entityType string, entityID int64, storeID int) (string, error) {
	var path string
	err := db.QueryRow(ctx,
		`SELECT request_path FROM url_rewrite
		 WHERE entity_type = $1 AND entity_id = $2 AND store_id = $3 AND redirect_type = 0
		 ORDER BY url_rewrite_id LIMIT 1`,
		entityType, entityID, storeID,
	).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select rewrite for %s %d in store %d: %w", entityType, entityID, storeID, err)
	}
	return path, nil
}
