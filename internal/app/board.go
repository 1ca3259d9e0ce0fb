package service

import (
	"fmt"
	"sync"

	"github.com/okian/pickem/internal/adapters/repository"
	"github.com/okian/pickem/internal/domain/cursor"
	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
	"github.com/okian/pickem/internal/domain/reorder"
	"github.com/okian/pickem/internal/domain/types"
)

// Initial overrides the seed defaults when a board is opened. Empty fields
// fall back to the defaults.
type Initial struct {
	Eastern []model.Item     `json:"eastern,omitempty"`
	Western []model.Item     `json:"western,omitempty"`
	AllNBA  *model.SlotSet   `json:"allNba,omitempty"`
	Awards  *model.SlotSet   `json:"awards,omitempty"`
	Picks   []model.PropPick `json:"picks,omitempty"`
}

// board is one user's editable state. mu serialises every operation on it.
type board struct {
	mu        sync.Mutex
	userID    string
	standings map[model.Conference][]model.Item
	drags     map[model.Conference]*reorder.DragSession
	picker    *cursor.Picker
	picks     map[string]string
}

func (s *Service) newBoard(userID string, init *Initial) (*board, error) {
	if init == nil {
		init = &Initial{}
	}

	b := &board{
		userID:    userID,
		standings: make(map[model.Conference][]model.Item, len(model.Conferences)),
		drags:     make(map[model.Conference]*reorder.DragSession, len(model.Conferences)),
		picks:     make(map[string]string),
	}

	initial := map[model.Conference][]model.Item{
		model.ConferenceEastern: init.Eastern,
		model.ConferenceWestern: init.Western,
	}
	for _, c := range model.Conferences {
		items := initial[c]
		if len(items) == 0 {
			items = s.data.Conferences[c]
		}
		b.standings[c] = reorder.Normalize(items)
		b.drags[c] = &reorder.DragSession{}
	}

	allNBA, awards := s.data.AllNBA, s.data.Awards
	if init.AllNBA != nil {
		if init.AllNBA.Category != model.CategoryAllNBA {
			return nil, fmt.Errorf("%w: all-nba set has category %q", ErrInvalidInput, init.AllNBA.Category)
		}
		allNBA = *init.AllNBA
	}
	if init.Awards != nil {
		if init.Awards.Category != model.CategoryAwards {
			return nil, fmt.Errorf("%w: awards set has category %q", ErrInvalidInput, init.Awards.Category)
		}
		awards = *init.Awards
	}
	b.picker = cursor.New(s.policy, allNBA, awards)

	for _, pk := range init.Picks {
		if err := s.checkPick(pk.PropID, pk.Prediction); err != nil {
			return nil, err
		}
		b.picks[pk.PropID] = pk.Prediction
	}

	return b, nil
}

func (s *Service) checkPick(propID, prediction string) error {
	if _, ok := s.data.Prop(propID); !ok {
		return fmt.Errorf("%w: %q", ErrPropNotFound, propID)
	}
	if !model.ValidPick(prediction) {
		return fmt.Errorf("%w: prediction must be %q or %q", ErrInvalidInput, model.PickOver, model.PickUnder)
	}
	return nil
}

// restore loads saved snapshots into a freshly built board.
func (b *board) restore(snaps []repository.Snapshot, policy cursor.Policy) {
	sets := b.picker.Sets()
	for _, snap := range snaps {
		switch p := snap.Payload.(type) {
		case payload.Standings:
			if len(p.Eastern) > 0 {
				b.standings[model.ConferenceEastern] = reorder.Normalize(p.Eastern)
			}
			if len(p.Western) > 0 {
				b.standings[model.ConferenceWestern] = reorder.Normalize(p.Western)
			}
		case payload.AllNBA:
			for i := range sets {
				if sets[i].Category == model.CategoryAllNBA {
					sets[i].Groups = p.Teams
				}
			}
		case payload.Awards:
			byRole := make(map[string]*model.Item, len(p.Awards))
			for _, a := range p.Awards {
				byRole[a.Role] = a.Occupant
			}
			for i := range sets {
				if sets[i].Category != model.CategoryAwards {
					continue
				}
				for g := range sets[i].Groups {
					for k, slot := range sets[i].Groups[g].Slots {
						if occ, ok := byRole[slot.Role]; ok {
							sets[i].Groups[g].Slots[k].Occupant = occ
						}
					}
				}
			}
		case payload.Props:
			for _, pk := range p.Picks {
				b.picks[pk.PropID] = pk.Prediction
			}
		}
	}
	b.picker = cursor.New(policy, sets...)
}

// snapshot builds the payload for category from the board's current state.
// Callers hold b.mu.
func (b *board) snapshot(category model.Category, props []model.Prop) payload.Payload {
	switch category {
	case model.CategoryStandings:
		return payload.FromStandings(b.standings[model.ConferenceEastern], b.standings[model.ConferenceWestern])
	case model.CategoryAllNBA, model.CategoryAwards:
		set, ok := b.picker.Set(category)
		if !ok {
			return nil
		}
		set.Unique = b.picker.Enforces(category)
		return payload.FromSlotSet(set)
	case model.CategoryProps:
		return payload.FromPicks(b.orderedPicks(props))
	}
	return nil
}

// orderedPicks lists picks in catalog prop order.
func (b *board) orderedPicks(props []model.Prop) []model.PropPick {
	out := make([]model.PropPick, 0, len(b.picks))
	for _, p := range props {
		if pred, ok := b.picks[p.ID]; ok {
			out = append(out, model.PropPick{PropID: p.ID, Prediction: pred})
		}
	}
	return out
}

func (s *Service) standingsView(b *board, c model.Conference) types.StandingsView {
	items := b.standings[c]
	return types.StandingsView{
		Conference: c,
		Rows:       reorder.View(items, s.playoffSpots, s.maxDisplayed),
		Total:      len(items),
		Dragging:   b.drags[c].Dragged(),
	}
}

func (s *Service) propsView(b *board) []types.PropView {
	out := make([]types.PropView, 0, len(s.data.Props))
	for _, p := range s.data.Props {
		out = append(out, types.PropView{Prop: p, Prediction: b.picks[p.ID]})
	}
	return out
}

func (s *Service) boardView(b *board) types.BoardView {
	v := types.BoardView{
		UserID: b.userID,
		Slots:  b.picker.Sets(),
		Props:  s.propsView(b),
		Season: s.Season(),
		Score:  s.currentScore,
	}
	for _, c := range model.Conferences {
		v.Standings = append(v.Standings, s.standingsView(b, c))
	}
	if ref, ok := b.picker.Active(); ok {
		v.Cursor = &ref
	}
	return v
}

func savedPrediction(snap repository.Snapshot) types.SavedPrediction {
	return types.SavedPrediction{
		Category: snap.Category,
		Version:  snap.Version,
		Source:   snap.Source,
		SavedAt:  snap.SavedAt,
		Complete: payload.Complete(snap.Payload),
		Payload:  snap.Payload,
	}
}
