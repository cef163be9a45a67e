package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/database"
	"github.com/warmfront/warmfront/internal/store"
)

// ProductCollector lists every product page URL for a store straight from the
// url_rewrite table. It covers catalogs whose sitemaps are stale or disabled.
type ProductCollector struct {
	db     database.Querier
	logger *zap.Logger
}

// NewProductCollector constructs a ProductCollector.
func NewProductCollector(db database.Querier, logger *zap.Logger) *ProductCollector {
	return &ProductCollector{db: db, logger: logger}
}

func (p *ProductCollector) CollectURLs(ctx context.Context, st store.Store) ([]string, error) {
	rows, err := p.db.Query(ctx,
		`SELECT request_path FROM url_rewrite
		 WHERE entity_type = 'product' AND store_id = $1 AND redirect_type = 0
		 ORDER BY url_rewrite_id`,
		st.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select product rewrites for store %d: %w", st.ID, err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan product rewrite: %w", err)
		}
		urls = append(urls, st.URL(path))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rewrites: %w", err)
	}

	p.logger.Debug("Collected product URLs",
		zap.String("store", st.Code), zap.Int("urls", len(urls)))
	return urls, nil
}
