// Package seed loads the catalog a board starts from: teams, players, slot
// templates, props and the comparison users shown after the lock.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidSeed reports a seed document that cannot back a board.
var ErrInvalidSeed = errors.New("invalid seed")

// Data is a resolved catalog.
type Data struct {
	Conferences map[model.Conference][]model.Item
	Players     []model.Item
	AllNBA      model.SlotSet
	Awards      model.SlotSet
	Props       []model.Prop
	Users       []User
}

// User is a comparison user with ready-made predictions.
type User struct {
	ID          string
	Name        string
	Email       string
	Predictions []payload.Payload
}

type teamDoc struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	NBAID int    `yaml:"nba_id"`
}

type userDoc struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Standings struct {
		Eastern []string `yaml:"eastern"`
		Western []string `yaml:"western"`
	} `yaml:"standings"`
	AllNBA map[string][]string `yaml:"all_nba"`
	Awards map[string]string   `yaml:"awards"`
	Props  map[string]string   `yaml:"props"`
}

type document struct {
	LogoURL string `yaml:"logo_url"`
	Teams   struct {
		Eastern []teamDoc `yaml:"eastern"`
		Western []teamDoc `yaml:"western"`
	} `yaml:"teams"`
	Players []model.Item  `yaml:"players"`
	AllNBA  model.SlotSet `yaml:"all_nba"`
	Awards  model.SlotSet `yaml:"awards"`
	Props   []model.Prop  `yaml:"props"`
	Users   []userDoc     `yaml:"users"`
}

// Default parses the embedded catalog.
func Default() (*Data, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Data, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and resolves a YAML catalog.
func Parse(raw []byte) (*Data, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	d := &Data{
		Conferences: map[model.Conference][]model.Item{
			model.ConferenceEastern: teams(doc.LogoURL, model.ConferenceEastern, doc.Teams.Eastern),
			model.ConferenceWestern: teams(doc.LogoURL, model.ConferenceWestern, doc.Teams.Western),
		},
		Players: doc.Players,
		AllNBA:  doc.AllNBA,
		Awards:  doc.Awards,
		Props:   doc.Props,
	}
	d.AllNBA.Category = model.CategoryAllNBA
	d.Awards.Category = model.CategoryAwards

	if err := d.validate(); err != nil {
		return nil, err
	}

	for _, u := range doc.Users {
		user, err := d.resolveUser(u)
		if err != nil {
			return nil, err
		}
		d.Users = append(d.Users, user)
	}
	return d, nil
}

func teams(logoURL string, conf model.Conference, docs []teamDoc) []model.Item {
	out := make([]model.Item, len(docs))
	for i, t := range docs {
		meta := map[string]string{"conference": string(conf)}
		if logoURL != "" && t.NBAID != 0 {
			meta["logo"] = fmt.Sprintf(logoURL, t.NBAID)
		}
		out[i] = model.Item{ID: t.ID, Name: t.Name, Meta: meta, Position: i + 1}
	}
	return out
}

func (d *Data) validate() error {
	seen := make(map[string]bool)
	for _, conf := range model.Conferences {
		list := d.Conferences[conf]
		if len(list) == 0 {
			return fmt.Errorf("%w: %s conference has no teams", ErrInvalidSeed, conf)
		}
		for _, t := range list {
			if t.ID == "" || seen[t.ID] {
				return fmt.Errorf("%w: team id %q missing or repeated", ErrInvalidSeed, t.ID)
			}
			seen[t.ID] = true
		}
	}
	if len(d.Players) == 0 {
		return fmt.Errorf("%w: no players", ErrInvalidSeed)
	}
	if len(d.AllNBA.Groups) == 0 || len(d.Awards.Groups) == 0 {
		return fmt.Errorf("%w: slot templates missing", ErrInvalidSeed)
	}
	for _, p := range d.Props {
		if p.ID == "" {
			return fmt.Errorf("%w: prop without id", ErrInvalidSeed)
		}
	}
	return nil
}

// Team returns the team with id from either conference.
func (d *Data) Team(id string) (model.Item, bool) {
	for _, conf := range model.Conferences {
		for _, t := range d.Conferences[conf] {
			if t.ID == id {
				return t.Clone(), true
			}
		}
	}
	return model.Item{}, false
}

// Prop returns the prop with id.
func (d *Data) Prop(id string) (model.Prop, bool) {
	for _, p := range d.Props {
		if p.ID == id {
			return p, true
		}
	}
	return model.Prop{}, false
}

// playerByName resolves a name against the catalog. Names outside the catalog
// still resolve to an item so comparison data can mention any player.
func (d *Data) playerByName(name string) model.Item {
	for _, p := range d.Players {
		if strings.EqualFold(p.Name, name) {
			return p.Clone()
		}
	}
	return model.Item{ID: slug(name), Name: name}
}

func (d *Data) resolveUser(u userDoc) (User, error) {
	if u.ID == "" {
		return User{}, fmt.Errorf("%w: user without id", ErrInvalidSeed)
	}
	user := User{ID: u.ID, Name: u.Name, Email: u.Email}

	east, err := d.ranking(u.Standings.Eastern)
	if err != nil {
		return User{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	west, err := d.ranking(u.Standings.Western)
	if err != nil {
		return User{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if len(east)+len(west) > 0 {
		user.Predictions = append(user.Predictions, payload.FromStandings(east, west))
	}

	if len(u.AllNBA) > 0 {
		user.Predictions = append(user.Predictions, d.userAllNBA(u.AllNBA))
	}
	if len(u.Awards) > 0 {
		user.Predictions = append(user.Predictions, d.userAwards(u.Awards))
	}
	if len(u.Props) > 0 {
		var picks []model.PropPick
		for _, p := range d.Props {
			if side, ok := u.Props[p.ID]; ok {
				picks = append(picks, model.PropPick{PropID: p.ID, Prediction: side})
			}
		}
		user.Predictions = append(user.Predictions, payload.FromPicks(picks))
	}

	for _, p := range user.Predictions {
		if err := p.Validate(); err != nil {
			return User{}, fmt.Errorf("%w: user %s: %v", ErrInvalidSeed, u.ID, err)
		}
	}
	return user, nil
}

func (d *Data) ranking(ids []string) ([]model.Item, error) {
	out := make([]model.Item, 0, len(ids))
	for i, id := range ids {
		t, ok := d.Team(id)
		if !ok {
			return nil, fmt.Errorf("%w: unknown team %q", ErrInvalidSeed, id)
		}
		t.Position = i + 1
		out = append(out, t)
	}
	return out, nil
}

// userAllNBA lays named players onto the template; groups follow template
// order, then any extra groups sorted by id.
func (d *Data) userAllNBA(teams map[string][]string) payload.Payload {
	set := model.SlotSet{Category: model.CategoryAllNBA, Unique: d.AllNBA.Unique}
	used := make(map[string]bool)
	for _, g := range d.AllNBA.Groups {
		names, ok := teams[g.ID]
		if !ok {
			continue
		}
		used[g.ID] = true
		set.Groups = append(set.Groups, fill(g, names, d))
	}
	var extra []string
	for id := range teams {
		if !used[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		set.Groups = append(set.Groups, fill(model.SlotGroup{ID: id, Name: id}, teams[id], d))
	}
	return payload.FromSlotSet(set)
}

func fill(tmpl model.SlotGroup, names []string, d *Data) model.SlotGroup {
	g := model.SlotGroup{ID: tmpl.ID, Name: tmpl.Name}
	for i, name := range names {
		role := ""
		if i < len(tmpl.Slots) {
			role = tmpl.Slots[i].Role
		}
		p := d.playerByName(name)
		g.Slots = append(g.Slots, model.Slot{Role: role, Occupant: &p})
	}
	return g
}

func (d *Data) userAwards(awards map[string]string) payload.Payload {
	set := d.Awards.Clone()
	for gi := range set.Groups {
		for si := range set.Groups[gi].Slots {
			s := &set.Groups[gi].Slots[si]
			if name, ok := awards[s.Role]; ok {
				p := d.playerByName(name)
				s.Occupant = &p
			}
		}
	}
	return payload.FromSlotSet(set)
}

func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
