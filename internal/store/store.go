// Package store models the storefronts whose caches get warmed.
package store

import (
	"fmt"
	"net/url"
	"sort"
)

// Store is one storefront: a numeric id, a short code, and the base URL all
// of its pages live under.
type Store struct {
	ID      int
	Code    string
	BaseURL string
}

// Host returns the hostname of the store's base URL.
func (s Store) Host() (string, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", s.BaseURL, err)
	}
	return u.Hostname(), nil
}

// URL joins a relative path onto the store's base URL.
func (s Store) URL(path string) string {
	u, err := url.JoinPath(s.BaseURL, path)
	if err != nil {
		return s.BaseURL + "/" + path
	}
	return u
}

// Manager resolves stores configured for this deployment.
type Manager struct {
	stores []Store
	byID   map[int]Store
	byCode map[string]Store
}

// NewManager builds a Manager over the configured store set.
func NewManager(stores []Store) *Manager {
	m := &Manager{
		stores: append([]Store(nil), stores...),
		byID:   make(map[int]Store, len(stores)),
		byCode: make(map[string]Store, len(stores)),
	}
	for _, s := range stores {
		m.byID[s.ID] = s
		m.byCode[s.Code] = s
	}
	return m
}

// All returns every configured store.
func (m *Manager) All() []Store {
	return append([]Store(nil), m.stores...)
}

// ByID looks a store up by its numeric id.
func (m *Manager) ByID(id int) (Store, bool) {
	s, ok := m.byID[id]
	return s, ok
}

// ByCode looks a store up by its code.
func (m *Manager) ByCode(code string) (Store, bool) {
	s, ok := m.byCode[code]
	return s, ok
}

// IDs returns the ids of every configured store, ascending.
func (m *Manager) IDs() []int {
	ids := make([]int, 0, len(m.stores))
	for _, s := range m.stores {
		ids = append(ids, s.ID)
	}
	sort.Ints(ids)
	return ids
}
