// Package reorder computes new orderings of a standings list.
//
// Every function here is pure: inputs are never mutated and the returned
// slice carries positions 1..N matching its order.
package reorder

import (
	"sort"

	"github.com/okian/pickem/internal/domain/model"
)

// Reorder moves the item with draggedID so that it sits at target in the
// list without the dragged item. A target at or past the end appends and a
// negative target inserts at the front. An unknown id returns a copy of the
// input with its positions untouched.
func Reorder(items []model.Item, draggedID string, target int) []model.Item {
	from := indexOf(items, draggedID)
	if from < 0 {
		return model.CloneItems(items)
	}

	rest := make([]model.Item, 0, len(items))
	for i := range items {
		if i != from {
			rest = append(rest, items[i].Clone())
		}
	}

	switch {
	case target < 0:
		target = 0
	case target > len(rest):
		target = len(rest)
	}

	out := make([]model.Item, 0, len(items))
	out = append(out, rest[:target]...)
	out = append(out, items[from].Clone())
	out = append(out, rest[target:]...)
	return Renumber(out)
}

// Normalize prepares an initial list: an item keeps a positive Position as its
// sort key, otherwise its index+1 is used. The list is stably sorted by that
// key and renumbered 1..N.
func Normalize(items []model.Item) []model.Item {
	out := model.CloneItems(items)
	for i := range out {
		if out[i].Position <= 0 {
			out[i].Position = i + 1
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Position < out[b].Position })
	return Renumber(out)
}

// Renumber sets every position to its 1-based index, in place, and returns items.
func Renumber(items []model.Item) []model.Item {
	for i := range items {
		items[i].Position = i + 1
	}
	return items
}

// Changed reports whether the id order of a and b differs.
func Changed(a, b []model.Item) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return true
		}
	}
	return false
}

func indexOf(items []model.Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
