package model

// Slot is a named place awaiting at most one occupant.
type Slot struct {
	Role        string `json:"role" yaml:"role"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Occupant    *Item  `json:"occupant,omitempty" yaml:"-"`
}

// Empty reports whether nobody occupies the slot.
func (s Slot) Empty() bool { return s.Occupant == nil }

// SlotGroup is an ordered run of slots, e.g. one All-NBA team.
type SlotGroup struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Slots []Slot `json:"slots" yaml:"slots"`
}

// SlotSet holds every slot group of one category. When Unique is set an item
// should occupy at most one slot across the whole set.
type SlotSet struct {
	Category Category    `json:"category" yaml:"category"`
	Unique   bool        `json:"unique" yaml:"unique"`
	Groups   []SlotGroup `json:"groups" yaml:"groups"`
}

// SlotRef addresses a single slot inside a board.
type SlotRef struct {
	Category Category `json:"category"`
	Group    string   `json:"group"`
	Slot     int      `json:"slot"`
}

// Clone deep copies the set including occupants.
func (s SlotSet) Clone() SlotSet {
	out := SlotSet{Category: s.Category, Unique: s.Unique, Groups: make([]SlotGroup, len(s.Groups))}
	for gi, g := range s.Groups {
		ng := SlotGroup{ID: g.ID, Name: g.Name, Slots: make([]Slot, len(g.Slots))}
		for si, sl := range g.Slots {
			ng.Slots[si] = Slot{Role: sl.Role, Description: sl.Description}
			if sl.Occupant != nil {
				occ := sl.Occupant.Clone()
				ng.Slots[si].Occupant = &occ
			}
		}
		out.Groups[gi] = ng
	}
	return out
}

// Lookup returns a pointer to the slot ref names, or false.
func (s *SlotSet) Lookup(ref SlotRef) (*Slot, bool) {
	if ref.Category != s.Category || ref.Slot < 0 {
		return nil, false
	}
	for gi := range s.Groups {
		if s.Groups[gi].ID != ref.Group {
			continue
		}
		if ref.Slot >= len(s.Groups[gi].Slots) {
			return nil, false
		}
		return &s.Groups[gi].Slots[ref.Slot], true
	}
	return nil, false
}

// Refs lists every slot address in group then slot order.
func (s SlotSet) Refs() []SlotRef {
	var out []SlotRef
	for _, g := range s.Groups {
		for i := range g.Slots {
			out = append(out, SlotRef{Category: s.Category, Group: g.ID, Slot: i})
		}
	}
	return out
}

// Filled counts occupied slots.
func (s SlotSet) Filled() int {
	n := 0
	for _, g := range s.Groups {
		for _, sl := range g.Slots {
			if sl.Occupant != nil {
				n++
			}
		}
	}
	return n
}
