package queue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/config"
	"github.com/warmfront/warmfront/internal/metrics"
	"github.com/warmfront/warmfront/internal/store"
	"github.com/warmfront/warmfront/internal/warmer"
)

// URLResolver resolves the warmable URLs for one entity in one store scope.
type URLResolver interface {
	GetURLsForType(ctx context.Context, entityType string, entityID int64, storeID int) ([]string, error)
}

// Warmer executes one warming run. *warmer.Engine satisfies it.
type Warmer interface {
	Warm(ctx context.Context, urls []string, opts warmer.Options) (map[string]warmer.Result, error)
}

// Consumer drains the queue in batches: claim pending items, resolve their
// URLs, warm them grouped by store, and finalize each item as complete or
// error. One bad item never blocks the rest of the batch.
type Consumer struct {
	repo     Repository
	resolver URLResolver
	engine   Warmer
	cfg      config.Config
	stores   *store.Manager
	logger   *zap.Logger
}

// NewConsumer constructs a Consumer.
func NewConsumer(repo Repository, resolver URLResolver, engine Warmer, cfg config.Config, stores *store.Manager, logger *zap.Logger) *Consumer {
	return &Consumer{
		repo:     repo,
		resolver: resolver,
		engine:   engine,
		cfg:      cfg,
		stores:   stores,
		logger:   logger,
	}
}

// workItem is one claimed queue item with its resolved URLs.
type workItem struct {
	item Item
	urls []string
}

// Process runs one batch. It returns an error only when the queue itself
// cannot be read; item-level failures are finalized on the items.
func (c *Consumer) Process(ctx context.Context) error {
	pending, err := c.repo.GetPending(ctx, c.cfg.Warmer.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch pending queue items: %w", err)
	}
	if len(pending) == 0 {
		c.logger.Debug("Queue is empty, nothing to process")
		return nil
	}
	c.logger.Info("Processing queue batch", zap.Int("items", len(pending)))

	claimed := c.claim(ctx, pending)
	work, failed := c.resolve(ctx, claimed)

	for _, item := range failed {
		c.finalize(ctx, item, StatusError)
	}

	byStore := make(map[int][]workItem)
	for _, w := range work {
		if len(w.urls) == 0 {
			// Nothing to warm; the change is already satisfied.
			c.finalize(ctx, w.item, StatusComplete)
			continue
		}
		byStore[w.item.StoreID] = append(byStore[w.item.StoreID], w)
	}

	for storeID, items := range byStore {
		c.warmStore(ctx, storeID, items)
	}
	return nil
}

// claim moves each pending item to processing. Items that cannot be claimed
// are dropped from the batch and left for the next run.
func (c *Consumer) claim(ctx context.Context, pending []Item) []Item {
	claimed := make([]Item, 0, len(pending))
	for _, item := range pending {
		item.Status = StatusProcessing
		if err := c.repo.Save(ctx, item); err != nil {
			c.logger.Error("Failed to claim queue item",
				zap.Int64("item_id", item.ID), zap.Error(err))
			continue
		}
		claimed = append(claimed, item)
	}
	return claimed
}

// resolve looks up the URLs for each claimed item. Resolution failures are
// returned separately so the caller can finalize them as errors.
func (c *Consumer) resolve(ctx context.Context, claimed []Item) (work []workItem, failed []Item) {
	for _, item := range claimed {
		urls, err := c.resolver.GetURLsForType(ctx, item.EntityType, item.TargetEntityID, item.StoreID)
		if err != nil {
			c.logger.Error("Failed to resolve URLs for queue item",
				zap.Int64("item_id", item.ID),
				zap.Int64("entity_id", item.TargetEntityID),
				zap.String("entity_type", item.EntityType),
				zap.Int("store_id", item.StoreID),
				zap.Error(err),
			)
			failed = append(failed, item)
			continue
		}
		work = append(work, workItem{item: item, urls: urls})
	}
	return work, failed
}

// warmStore runs one warming pass for all items scoped to a store and
// finalizes them from the merged results.
func (c *Consumer) warmStore(ctx context.Context, storeID int, items []workItem) {
	st, ok := c.stores.ByID(storeID)
	if !ok {
		c.logger.Error("Queue items reference an unknown store", zap.Int("store_id", storeID))
		for _, w := range items {
			c.finalize(ctx, w.item, StatusError)
		}
		return
	}

	var (
		urls   []string
		owners []int // index into items per URL
	)
	for i, w := range items {
		for _, u := range w.urls {
			urls = append(urls, u)
			owners = append(owners, i)
		}
	}

	opts := warmer.OptionsForStore(c.cfg, st)
	results, err := c.engine.Warm(ctx, urls, opts)
	if err != nil {
		c.logger.Error("Warming run reported pool failures",
			zap.String("store", st.Code), zap.Error(err))
	}
	if len(results) == 0 {
		// No pool produced a result; nothing proves any page was warmed.
		for _, w := range items {
			c.finalize(ctx, w.item, StatusError)
		}
		return
	}

	best := mergePools(results, len(urls))

	itemFailed := make([]bool, len(items))
	for i, status := range best {
		if warmer.IsSuccess(status) {
			continue
		}
		owner := owners[i]
		itemFailed[owner] = true
		c.logger.Error("Page failed to warm in every pool",
			zap.Int64("item_id", items[owner].item.ID),
			zap.String("url", urls[i]),
			zap.Int("status", status),
		)
	}

	for i, w := range items {
		if itemFailed[i] {
			c.finalize(ctx, w.item, StatusError)
		} else {
			c.finalize(ctx, w.item, StatusComplete)
		}
	}
}

// mergePools reduces per-pool results to the best status seen per URL index.
// A URL counts as warmed when any pool succeeded on it.
func mergePools(results map[string]warmer.Result, total int) []int {
	best := make([]int, total)
	seen := make([]bool, total)
	for _, res := range results {
		for i, status := range res.Statuses {
			if i >= total {
				break
			}
			if !seen[i] || (!warmer.IsSuccess(best[i]) && warmer.IsSuccess(status)) {
				best[i] = status
				seen[i] = true
			}
		}
	}
	return best
}

// finalize writes the item's terminal status.
func (c *Consumer) finalize(ctx context.Context, item Item, status Status) {
	item.Status = status
	if err := c.repo.Save(ctx, item); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn("Queue item disappeared before finalize", zap.Int64("item_id", item.ID))
			return
		}
		c.logger.Error("Failed to finalize queue item",
			zap.Int64("item_id", item.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveQueueItem(string(status))
}
