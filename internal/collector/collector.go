// Package collector gathers the URL lists that full-page warming runs crawl.
// Each collector is one URL source (sitemap, product catalog, ...) registered
// under a short code; the registry lets runs pick a source by name or sweep
// all of them in priority order.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/warmfront/warmfront/internal/store"
)

// ErrUnsupportedType is returned when no collector is registered for a code.
var ErrUnsupportedType = errors.New("unsupported collector type")

// Collector produces the URLs to warm for one store.
type Collector interface {
	CollectURLs(ctx context.Context, st store.Store) ([]string, error)
}

// CodeAll sweeps every registered source in priority order.
const CodeAll = "all"

type entry struct {
	code      string
	label     string
	sortOrder int
	collector Collector
}

// Registry holds the known URL sources.
type Registry struct {
	entries map[string]entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a collector under a code. Registering CodeAll is not allowed;
// the aggregate source is derived from the registry itself.
func (r *Registry) Register(code, label string, sortOrder int, c Collector) error {
	if code == CodeAll {
		return fmt.Errorf("collector code %q is reserved", CodeAll)
	}
	if _, exists := r.entries[code]; exists {
		return fmt.Errorf("collector %q already registered", code)
	}
	r.entries[code] = entry{code: code, label: label, sortOrder: sortOrder, collector: c}
	return nil
}

// Get returns the collector for a code. CodeAll returns the aggregate over
// every registered source.
func (r *Registry) Get(code string) (Collector, error) {
	if code == CodeAll {
		return &allCollector{registry: r}, nil
	}
	e, ok := r.entries[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, code)
	}
	return e.collector, nil
}

// Types returns the registered codes, aggregate first, then by sort order.
func (r *Registry) Types() []string {
	codes := []string{CodeAll}
	for _, e := range r.ordered() {
		codes = append(codes, e.code)
	}
	return codes
}

func (r *Registry) ordered() []entry {
	entries := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].sortOrder != entries[j].sortOrder {
			return entries[i].sortOrder < entries[j].sortOrder
		}
		return entries[i].code < entries[j].code
	})
	return entries
}

// allCollector concatenates every registered source in priority order,
// dropping URLs already produced by an earlier source.
type allCollector struct {
	registry *Registry
}

func (a *allCollector) CollectURLs(ctx context.Context, st store.Store) ([]string, error) {
	var (
		urls []string
		seen = make(map[string]struct{})
	)
	for _, e := range a.registry.ordered() {
		collected, err := e.collector.CollectURLs(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("collect %s URLs: %w", e.code, err)
		}
		for _, u := range collected {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls, nil
}
