package payload

import "github.com/okian/pickem/internal/domain/model"

// FromStandings snapshots both conference lists.
func FromStandings(eastern, western []model.Item) Standings {
	return Standings{Eastern: model.CloneItems(eastern), Western: model.CloneItems(western)}
}

// FromSlotSet snapshots a slot set as its category's variant. Categories that
// are not slot based return nil. Only the All-NBA variant carries Unique.
func FromSlotSet(set model.SlotSet) Payload {
	c := set.Clone()
	switch c.Category {
	case model.CategoryAllNBA:
		return AllNBA{Unique: c.Unique, Teams: c.Groups}
	case model.CategoryAwards:
		var slots []model.Slot
		for _, g := range c.Groups {
			slots = append(slots, g.Slots...)
		}
		return Awards{Awards: slots}
	}
	return nil
}

// FromPicks snapshots prop picks.
func FromPicks(picks []model.PropPick) Props {
	return Props{Picks: append([]model.PropPick(nil), picks...)}
}

// Complete reports whether a payload has every slot or pick filled. Empty
// payloads are never complete.
func Complete(p Payload) bool {
	switch v := p.(type) {
	case Standings:
		return len(v.Eastern) > 0 && len(v.Western) > 0
	case AllNBA:
		n := 0
		for _, g := range v.Teams {
			for _, s := range g.Slots {
				if s.Occupant == nil {
					return false
				}
				n++
			}
		}
		return n > 0
	case Awards:
		for _, s := range v.Awards {
			if s.Occupant == nil {
				return false
			}
		}
		return len(v.Awards) > 0
	case Props:
		return len(v.Picks) > 0
	}
	return false
}
