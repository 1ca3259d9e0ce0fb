// Package model contains domain models passed between layers.
package model

// Item is one selectable entry: a team in a standings list or a player in the
// registry. ID is stable for the lifetime of a board.
type Item struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Tag      string            `json:"tag,omitempty" yaml:"tag,omitempty"`   // position tag for players: G, F, C
	Meta     map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"` // display-only data (logo, team, image)
	Position int               `json:"position" yaml:"position,omitempty"`
}

// Clone returns a copy that shares no mutable state with i.
func (i Item) Clone() Item {
	out := i
	if i.Meta != nil {
		out.Meta = make(map[string]string, len(i.Meta))
		for k, v := range i.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// CloneItems deep copies a list of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// IDs returns the item ids in order.
func IDs(items []Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ID
	}
	return out
}
