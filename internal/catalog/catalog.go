// Package catalog provides a read-only client for the content catalog,
// used only to enrich purchase transactions with item display metadata.
package catalog

import (
	"context"
	"sync"
)

// Item is the display form of a purchasable item reference.
type Item struct {
	Ref   string `json:"ref"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

// Catalog resolves item references to display metadata in one batch per
// history page.
type Catalog interface {
	Lookup(ctx context.Context, refs []string) (map[string]Item, error)
}

// StaticCatalog answers every lookup with a placeholder item. Used in
// dev mode when no catalog service is configured.
type StaticCatalog struct{}

// Lookup returns a synthetic item per requested reference.
func (StaticCatalog) Lookup(_ context.Context, refs []string) (map[string]Item, error) {
	out := make(map[string]Item, len(refs))
	for _, ref := range refs {
		out[ref] = Item{Ref: ref, Title: "item " + ref, Kind: "content"}
	}
	return out, nil
}

type memoryCatalog struct {
	mu    sync.RWMutex
	items map[string]Item
}

// NewMemoryCatalog constructs a seedable in-memory catalog for tests.
func NewMemoryCatalog(items map[string]Item) Catalog {
	if items == nil {
		items = make(map[string]Item)
	}
	return &memoryCatalog{items: items}
}

func (c *memoryCatalog) Lookup(_ context.Context, refs []string) (map[string]Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Item, len(refs))
	for _, ref := range refs {
		if item, ok := c.items[ref]; ok {
			out[ref] = item
		}
	}
	return out, nil
}
