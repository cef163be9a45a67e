package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/config"
	"github.com/warmfront/warmfront/internal/metrics"
	"github.com/warmfront/warmfront/internal/store"
	"github.com/warmfront/warmfront/internal/warmer"
)

type fakeRepo struct {
	pending    []Item
	pendingErr error
	statuses   map[int64]Status
	deleted    []int64
	old        []Item
}

func newFakeRepo(pending ...Item) *fakeRepo {
	return &fakeRepo{pending: pending, statuses: make(map[int64]Status)}
}

func (f *fakeRepo) AddToQueue(_ context.Context, targetEntityID int64, entityType string, storeIDs []int) ([]Item, error) {
	var items []Item
	for _, id := range storeIDs {
		if id == 0 {
			continue
		}
		items = append(items, Item{ID: int64(len(items) + 1), TargetEntityID: targetEntityID, EntityType: entityType, StoreID: id, Status: StatusPending})
	}
	return items, nil
}

func (f *fakeRepo) GetPending(_ context.Context, limit int) ([]Item, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (Item, error) {
	for _, item := range f.pending {
		if item.ID == id {
			return item, nil
		}
	}
	return Item{}, ErrNotFound
}

func (f *fakeRepo) Save(_ context.Context, item Item) error {
	f.statuses[item.ID] = item.Status
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepo) GetOlderThan(_ context.Context, _ time.Time) ([]Item, error) {
	return f.old, nil
}

func (f *fakeRepo) CountByStatus(_ context.Context) (map[Status]int, error) {
	return nil, nil
}

type fakeResolver struct {
	urls map[int64][]string
	errs map[int64]error
}

func (f *fakeResolver) GetURLsForType(_ context.Context, _ string, entityID int64, _ int) ([]string, error) {
	if err, ok := f.errs[entityID]; ok {
		return nil, err
	}
	return f.urls[entityID], nil
}

// fakeWarmer returns one result per configured pool, repeating the pool's
// status for every URL.
type fakeWarmer struct {
	poolStatuses map[string]int
	warmedURLs   []string
}

func (f *fakeWarmer) Warm(_ context.Context, urls []string, _ warmer.Options) (map[string]warmer.Result, error) {
	f.warmedURLs = append(f.warmedURLs, urls...)
	results := make(map[string]warmer.Result)
	for pool, status := range f.poolStatuses {
		statuses := make([]int, len(urls))
		for i := range statuses {
			statuses[i] = status
		}
		results[pool] = warmer.Result{URLs: urls, Statuses: statuses, Durations: make([]float64, len(urls)), Total: len(urls)}
	}
	return results, nil
}

func testConsumer(repo Repository, res URLResolver, engine Warmer) *Consumer {
	metrics.Init()
	cfg := config.Config{Warmer: config.WarmerConfig{Concurrency: 2, BatchSize: 100}}
	stores := store.NewManager([]store.Store{{ID: 1, Code: "default", BaseURL: "https://shop.example.com"}})
	return NewConsumer(repo, res, engine, cfg, stores, zap.NewNop())
}

func TestProcessEmptyQueueIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	engine := &fakeWarmer{}
	c := testConsumer(repo, &fakeResolver{}, engine)

	require.NoError(t, c.Process(context.Background()))
	assert.Empty(t, engine.warmedURLs)
}

func TestProcessQueueReadFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.pendingErr = errors.New("connection refused")
	c := testConsumer(repo, &fakeResolver{}, &fakeWarmer{})

	err := c.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch pending queue items")
}

func TestProcessItemWithNoURLsCompletes(t *testing.T) {
	repo := newFakeRepo(Item{ID: 1, TargetEntityID: 42, EntityType: EntityTypeProduct, StoreID: 1, Status: StatusPending})
	engine := &fakeWarmer{}
	c := testConsumer(repo, &fakeResolver{urls: map[int64][]string{}}, engine)

	require.NoError(t, c.Process(context.Background()))
	assert.Equal(t, StatusComplete, repo.statuses[1])
	assert.Empty(t, engine.warmedURLs)
}

func TestProcessResolutionFailureMarksError(t *testing.T) {
	repo := newFakeRepo(Item{ID: 1, TargetEntityID: 42, EntityType: EntityTypeProduct, StoreID: 1, Status: StatusPending})
	res := &fakeResolver{errs: map[int64]error{42: errors.New("rewrite table unavailable")}}
	c := testConsumer(repo, res, &fakeWarmer{})

	require.NoError(t, c.Process(context.Background()))
	assert.Equal(t, StatusError, repo.statuses[1])
}

func TestProcessAnyPoolSuccessCompletes(t *testing.T) {
	repo := newFakeRepo(Item{ID: 1, TargetEntityID: 42, EntityType: EntityTypeProduct, StoreID: 1, Status: StatusPending})
	res := &fakeResolver{urls: map[int64][]string{42: {"https://shop.example.com/p1.html"}}}
	engine := &fakeWarmer{poolStatuses: map[string]int{
		"default/guest":   503,
		"default/shopper": 200,
	}}
	c := testConsumer(repo, res, engine)

	require.NoError(t, c.Process(context.Background()))
	assert.Equal(t, StatusComplete, repo.statuses[1])
}

func TestProcessAllPoolsFailingMarksError(t *testing.T) {
	repo := newFakeRepo(Item{ID: 1, TargetEntityID: 42, EntityType: EntityTypeProduct, StoreID: 1, Status: StatusPending})
	res := &fakeResolver{urls: map[int64][]string{42: {"https://shop.example.com/p1.html"}}}
	engine := &fakeWarmer{poolStatuses: map[string]int{
		"default/guest":   503,
		"default/shopper": 500,
	}}
	c := testConsumer(repo, res, engine)

	require.NoError(t, c.Process(context.Background()))
	assert.Equal(t, StatusError, repo.statuses[1])
}

func TestProcessTransportFailureIsNotSuccess(t *testing.T) {
	repo := newFakeRepo(Item{ID: 1, TargetEntityID: 42, EntityType: EntityTypeProduct, StoreID: 1, Status: StatusPending})
	res := &fakeResolver{urls: map[int64][]string{42: {"https://shop.example.com/p1.html"}}}
	engine := &fakeWarmer{poolStatuses: map[string]int{
		"default/guest":   warmer.StatusTransportFailure,
		"default/shopper": 500,
	}}
	c := testConsumer(repo, res, engine)

	require.NoError(t, c.Process(context.Background()))
	assert.Equal(t, StatusError, repo.statuses[1])
}

func TestProcessUnknownStoreMarksError(t *testing.T) {
	repo := newFakeRepo(Item{ID: 1, TargetEntityID: 42, EntityType: EntityTypeProduct, StoreID: 99, Status: StatusPending})
	res := &fakeResolver{urls: map[int64][]string{42: {"https://shop.example.com/p1.html"}}}
	c := testConsumer(repo, res, &fakeWarmer{})

	require.NoError(t, c.Process(context.Background()))
	assert.Equal(t, StatusError, repo.statuses[1])
}

func TestMergePoolsPrefersSuccess(t *testing.T) {
	results := map[string]warmer.Result{
		"a": {Statuses: []int{503, 200, 0}},
		"b": {Statuses: []int{200, 500, 502}},
	}
	best := mergePools(results, 3)
	assert.True(t, warmer.IsSuccess(best[0]))
	assert.True(t, warmer.IsSuccess(best[1]))
	assert.False(t, warmer.IsSuccess(best[2]), fmt.Sprintf("got %d", best[2]))
}
