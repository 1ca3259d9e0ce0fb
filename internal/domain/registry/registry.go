// Package registry holds the catalog of selectable players.
package registry

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/okian/pickem/internal/domain/model"
)

// Catalog is an immutable ordered set of items addressable by id.
type Catalog struct {
	items []model.Item
	byID  map[string]int
}

// New copies items into a catalog. Later duplicates of an id are dropped.
func New(items []model.Item) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(items))}
	for _, it := range items {
		if _, dup := c.byID[it.ID]; dup || it.ID == "" {
			continue
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it.Clone())
	}
	return c
}

// Filter returns the items whose name contains query (case-insensitive) and
// whose tag equals tag. Empty query or tag means no constraint. The result is
// a fresh slice in catalog order.
func (c *Catalog) Filter(query, tag string) []model.Item {
	q := strings.ToLower(query)
	out := make([]model.Item, 0, len(c.items))
	for _, it := range c.items {
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) {
			continue
		}
		if tag != "" && it.Tag != tag {
			continue
		}
		out = append(out, it.Clone())
	}
	return out
}

// Lookup returns the item with id.
func (c *Catalog) Lookup(id string) (model.Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Item{}, false
	}
	return c.items[i].Clone(), true
}

// All returns every item in catalog order.
func (c *Catalog) All() []model.Item { return model.CloneItems(c.items) }

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Tags returns the distinct tags in first-seen order.
func (c *Catalog) Tags() []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range c.items {
		if it.Tag != "" && !seen[it.Tag] {
			seen[it.Tag] = true
			out = append(out, it.Tag)
		}
	}
	return out
}

// Suggest returns up to n items whose name, or any word of it, is within a
// small edit distance of query. Closest first; ties keep catalog order.
func (c *Catalog) Suggest(query string, n int) []model.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || n <= 0 {
		return nil
	}
	limit := len(q)/2 + 1

	type scored struct {
		idx  int
		dist int
	}
	var hits []scored
	for i, it := range c.items {
		d := distance(q, strings.ToLower(it.Name))
		if d <= limit {
			hits = append(hits, scored{idx: i, dist: d})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].dist < hits[b].dist })

	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]model.Item, len(hits))
	for i, h := range hits {
		out[i] = c.items[h.idx].Clone()
	}
	return out
}

// distance is the smallest edit distance between q and the name or one of its words.
func distance(q, name string) int {
	best := levenshtein.ComputeDistance(q, name)
	for _, w := range strings.Fields(name) {
		if d := levenshtein.ComputeDistance(q, w); d < best {
			best = d
		}
	}
	return best
}
