// Package media holds the catalog of imported source files and the inspection
// and thumbnail collaborators that describe them.
package media

import "sort"

// CatalogSchemaVersion identifies the persisted catalog layout.
const CatalogSchemaVersion = 1

// Catalog is an immutable set of imported items addressable by id.
// Mutating methods return a new Catalog and leave the receiver untouched.
type Catalog struct {
	items map[string]Item
	order []string
}

// CatalogSnapshot is the persisted form of a Catalog.
type CatalogSnapshot struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

func NewCatalog(items ...Item) Catalog {
	c := Catalog{items: make(map[string]Item, len(items))}
	for _, it := range items {
		if _, dup := c.items[it.ID]; dup {
			continue
		}
		c.items[it.ID] = it
		c.order = append(c.order, it.ID)
	}
	return c
}

// Add returns a catalog containing item. An existing item with the same id is replaced.
func (c Catalog) Add(item Item) Catalog {
	next := c.clone()
	if _, exists := next.items[item.ID]; !exists {
		next.order = append(next.order, item.ID)
	}
	next.items[item.ID] = item
	return next
}

// Remove drops the item with id. The bool is false when no such item existed.
func (c Catalog) Remove(id string) (Catalog, bool) {
	if _, ok := c.items[id]; !ok {
		return c, false
	}
	next := c.clone()
	delete(next.items, id)
	for i, oid := range next.order {
		if oid == id {
			next.order = append(next.order[:i], next.order[i+1:]...)
			break
		}
	}
	return next, true
}

func (c Catalog) Get(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// FindByPath returns the first item imported from path.
func (c Catalog) FindByPath(path string) (Item, bool) {
	for _, id := range c.order {
		if c.items[id].SourcePath == path {
			return c.items[id], true
		}
	}
	return Item{}, false
}

// Items returns the items in import order.
func (c Catalog) Items() []Item {
	out := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

func (c Catalog) Len() int {
	return len(c.order)
}

func (c Catalog) Snapshot() CatalogSnapshot {
	return CatalogSnapshot{Version: CatalogSchemaVersion, Items: c.Items()}
}

// RestoreCatalog rebuilds a catalog from a snapshot. A snapshot written with a
// different schema version yields an empty catalog and false.
func RestoreCatalog(s CatalogSnapshot) (Catalog, bool) {
	if s.Version != CatalogSchemaVersion {
		return NewCatalog(), false
	}
	items := append([]Item(nil), s.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return NewCatalog(items...), true
}

func (c Catalog) clone() Catalog {
	next := Catalog{
		items: make(map[string]Item, len(c.items)+1),
		order: make([]string, len(c.order), len(c.order)+1),
	}
	for k, v := range c.items {
		next.items[k] = v
	}
	copy(next.order, c.order)
	return next
}
