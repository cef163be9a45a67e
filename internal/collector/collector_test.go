package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warmfront/warmfront/internal/store"
)

type stubCollector struct {
	urls []string
}

func (s stubCollector) CollectURLs(_ context.Context, _ store.Store) ([]string, error) {
	return s.urls, nil
}

func TestRegistryUnknownCode(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("sitemap")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRegistryReservesAllCode(t *testing.T) {
	r := NewRegistry()
	err := r.Register(CodeAll, "Everything", 1, stubCollector{})
	assert.Error(t, err)
}

func TestRegistryRejectsDuplicateCode(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("sitemap", "Sitemap", 10, stubCollector{}))
	assert.Error(t, r.Register("sitemap", "Sitemap again", 20, stubCollector{}))
}

func TestRegistryTypesOrderedBySortOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("product", "Product catalog", 20, stubCollector{}))
	require.NoError(t, r.Register("sitemap", "Sitemap", 10, stubCollector{}))

	assert.Equal(t, []string{CodeAll, "sitemap", "product"}, r.Types())
}

func TestAllCollectorDeduplicatesInOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("sitemap", "Sitemap", 10, stubCollector{urls: []string{
		"https://shop.example.com/a.html",
		"https://shop.example.com/b.html",
	}}))
	require.NoError(t, r.Register("product", "Product catalog", 20, stubCollector{urls: []string{
		"https://shop.example.com/b.html",
		"https://shop.example.com/c.html",
	}}))

	all, err := r.Get(CodeAll)
	require.NoError(t, err)

	urls, err := all.CollectURLs(context.Background(), store.Store{ID: 1, Code: "default"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://shop.example.com/a.html",
		"https://shop.example.com/b.html",
		"https://shop.example.com/c.html",
	}, urls)
}
