// Package cursor tracks which slot a user is filling and writes occupants.
package cursor

import (
	"github.com/okian/pickem/internal/domain/model"
)

// Policy decides what happens when an item already sits in another slot of a
// set marked Unique.
type Policy string

const (
	PolicyAllow  Policy = "allow"  // the item may appear twice
	PolicyClear  Policy = "clear"  // the older occupancy is emptied
	PolicyReject Policy = "reject" // the assignment is refused and the cursor stays
)

// Result describes what an Assign or Clear did.
type Result struct {
	Changed   bool            `json:"changed"`
	Category  model.Category  `json:"category,omitempty"`
	Slot      model.SlotRef   `json:"slot"`
	Displaced []model.SlotRef `json:"displaced,omitempty"`
	Rejected  bool            `json:"rejected,omitempty"`
}

// Picker owns the slot sets of one board and its single selection cursor.
// It is not safe for concurrent use; the owning board serialises access.
type Picker struct {
	sets   map[model.Category]*model.SlotSet
	order  []model.Category
	active *model.SlotRef
	policy Policy
}

// New copies sets into a picker. An unknown policy behaves as PolicyAllow.
func New(policy Policy, sets ...model.SlotSet) *Picker {
	p := &Picker{sets: make(map[model.Category]*model.SlotSet, len(sets)), policy: policy}
	for _, s := range sets {
		c := s.Clone()
		if _, dup := p.sets[c.Category]; !dup {
			p.order = append(p.order, c.Category)
		}
		p.sets[c.Category] = &c
	}
	return p
}

// Activate points the cursor at ref, replacing any earlier selection. A ref
// that names no slot leaves the cursor as it was and returns false.
func (p *Picker) Activate(ref model.SlotRef) bool {
	if _, ok := p.lookup(ref); !ok {
		return false
	}
	r := ref
	p.active = &r
	return true
}

// Active returns the selected slot, if any.
func (p *Picker) Active() (model.SlotRef, bool) {
	if p.active == nil {
		return model.SlotRef{}, false
	}
	return *p.active, true
}

// Deactivate drops the selection without touching any slot.
func (p *Picker) Deactivate() { p.active = nil }

// Assign writes item into the active slot and clears the cursor. Without an
// active slot it does nothing.
func (p *Picker) Assign(item model.Item) Result {
	if p.active == nil {
		return Result{}
	}
	ref := *p.active
	set := p.sets[ref.Category]
	slot, _ := set.Lookup(ref)

	var displaced []model.SlotRef
	if set.Unique {
		others := occupiedElsewhere(set, item.ID, ref)
		switch p.policy {
		case PolicyReject:
			if len(others) > 0 {
				return Result{Category: ref.Category, Slot: ref, Rejected: true}
			}
		case PolicyClear:
			for _, o := range others {
				s, _ := set.Lookup(o)
				s.Occupant = nil
			}
			displaced = others
		}
	}

	occ := item.Clone()
	slot.Occupant = &occ
	p.active = nil
	return Result{Changed: true, Category: ref.Category, Slot: ref, Displaced: displaced}
}

// Clear empties the active slot and clears the cursor. Without an active slot
// it does nothing.
func (p *Picker) Clear() Result {
	if p.active == nil {
		return Result{}
	}
	ref := *p.active
	slot, _ := p.lookup(ref)
	slot.Occupant = nil
	p.active = nil
	return Result{Changed: true, Category: ref.Category, Slot: ref}
}

// Set returns a copy of the slot set for category.
func (p *Picker) Set(category model.Category) (model.SlotSet, bool) {
	s, ok := p.sets[category]
	if !ok {
		return model.SlotSet{}, false
	}
	return s.Clone(), true
}

// Sets returns copies of every set in the order they were given.
func (p *Picker) Sets() []model.SlotSet {
	out := make([]model.SlotSet, 0, len(p.order))
	for _, c := range p.order {
		out = append(out, p.sets[c].Clone())
	}
	return out
}

// Enforces reports whether Assign keeps items to one slot of category's set:
// the set is Unique and the policy clears or rejects repeats.
func (p *Picker) Enforces(category model.Category) bool {
	s, ok := p.sets[category]
	if !ok || !s.Unique {
		return false
	}
	return p.policy == PolicyClear || p.policy == PolicyReject
}

// Categories lists the categories this picker holds.
func (p *Picker) Categories() []model.Category {
	return append([]model.Category(nil), p.order...)
}

func (p *Picker) lookup(ref model.SlotRef) (*model.Slot, bool) {
	set, ok := p.sets[ref.Category]
	if !ok {
		return nil, false
	}
	return set.Lookup(ref)
}

func occupiedElsewhere(set *model.SlotSet, id string, except model.SlotRef) []model.SlotRef {
	var out []model.SlotRef
	for _, r := range set.Refs() {
		if r == except {
			continue
		}
		if s, _ := set.Lookup(r); s.Occupant != nil && s.Occupant.ID == id {
			out = append(out, r)
		}
	}
	return out
}
