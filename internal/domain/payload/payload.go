// Package payload defines the snapshot handed to the save collaborator, one
// variant per prediction category.
package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/okian/pickem/internal/domain/model"
)

// Payload is one category's snapshot.
type Payload interface {
	Category() model.Category
	Validate() error
}

// Standings holds both conference orderings.
type Standings struct {
	Eastern []model.Item `json:"eastern"`
	Western []model.Item `json:"western"`
}

// AllNBA holds the All-NBA teams and their occupants. Unique is set when the
// board kept each player to one team.
type AllNBA struct {
	Unique bool              `json:"unique"`
	Teams  []model.SlotGroup `json:"teams"`
}

// Awards holds one slot per award; Role is the award id.
type Awards struct {
	Awards []model.Slot `json:"awards"`
}

// Props holds over/under picks.
type Props struct {
	Picks []model.PropPick `json:"picks"`
}

func (Standings) Category() model.Category { return model.CategoryStandings }
func (AllNBA) Category() model.Category    { return model.CategoryAllNBA }
func (Awards) Category() model.Category    { return model.CategoryAwards }
func (Props) Category() model.Category     { return model.CategoryProps }

// Validate checks each conference is a contiguous ranking with unique ids.
func (s Standings) Validate() error {
	if err := validateRanking("eastern", s.Eastern); err != nil {
		return err
	}
	return validateRanking("western", s.Western)
}

func validateRanking(name string, items []model.Item) error {
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("%w: %s[%d] has no id", ErrInvalidPayload, name, i)
		}
		if seen[it.ID] {
			return fmt.Errorf("%w: %s lists %q twice", ErrInvalidPayload, name, it.ID)
		}
		seen[it.ID] = true
		if it.Position != i+1 {
			return fmt.Errorf("%w: %s[%d] has position %d", ErrInvalidPayload, name, i, it.Position)
		}
	}
	return nil
}

// Validate checks team ids are unique and, when Unique is set, that no player
// is on two teams.
func (a AllNBA) Validate() error {
	groups := make(map[string]bool, len(a.Teams))
	players := make(map[string]string)
	for _, g := range a.Teams {
		if g.ID == "" || groups[g.ID] {
			return fmt.Errorf("%w: team id %q missing or repeated", ErrInvalidPayload, g.ID)
		}
		groups[g.ID] = true
		for _, s := range g.Slots {
			if s.Occupant == nil {
				continue
			}
			if s.Occupant.ID == "" {
				return fmt.Errorf("%w: team %s has an occupant without id", ErrInvalidPayload, g.ID)
			}
			if prev, dup := players[s.Occupant.ID]; dup && a.Unique {
				return fmt.Errorf("%w: player %s on teams %s and %s", ErrInvalidPayload, s.Occupant.ID, prev, g.ID)
			}
			players[s.Occupant.ID] = g.ID
		}
	}
	return nil
}

// Validate checks award ids are unique.
func (a Awards) Validate() error {
	seen := make(map[string]bool, len(a.Awards))
	for _, s := range a.Awards {
		if s.Role == "" || seen[s.Role] {
			return fmt.Errorf("%w: award %q missing or repeated", ErrInvalidPayload, s.Role)
		}
		seen[s.Role] = true
		if s.Occupant != nil && s.Occupant.ID == "" {
			return fmt.Errorf("%w: award %s has an occupant without id", ErrInvalidPayload, s.Role)
		}
	}
	return nil
}

// Validate checks each prop is picked once with over or under.
func (p Props) Validate() error {
	seen := make(map[string]bool, len(p.Picks))
	for _, pk := range p.Picks {
		if pk.PropID == "" || seen[pk.PropID] {
			return fmt.Errorf("%w: prop %q missing or repeated", ErrInvalidPayload, pk.PropID)
		}
		seen[pk.PropID] = true
		if !model.ValidPick(pk.Prediction) {
			return fmt.Errorf("%w: prop %s prediction %q", ErrInvalidPayload, pk.PropID, pk.Prediction)
		}
	}
	return nil
}

// Decode parses raw JSON as the variant for category.
func Decode(category model.Category, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch category {
	case model.CategoryStandings:
		var v Standings
		err = json.Unmarshal(raw, &v)
		p = v
	case model.CategoryAllNBA:
		var v AllNBA
		err = json.Unmarshal(raw, &v)
		p = v
	case model.CategoryAwards:
		var v Awards
		err = json.Unmarshal(raw, &v)
		p = v
	case model.CategoryProps:
		var v Props
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, p.Validate()
}

// Digest returns a stable content hash used to skip unchanged writes.
func Digest(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(p.Category()+":"), b...))
	return hex.EncodeToString(sum[:]), nil
}
