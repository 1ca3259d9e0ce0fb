package dragsim

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/pickem/internal/domain/model"
)

// missingID names no team; reordering it must leave the list alone.
const missingID = "no-such-team"

// Generator produces users and gestures from a seeded faker. It is not safe
// for concurrent use; give each worker its own.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a generator with the given seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(uint64(seed))}
}

// UserIDs returns n distinct user ids.
func (g *Generator) UserIDs(n int) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		id := fmt.Sprintf("%s-%s", strings.ToLower(g.faker.Username()), g.faker.Numerify("####"))
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Gesture picks a random gesture over items. Targets run one past either end
// of the list so clamping is exercised, and one gesture in twenty drags an
// id that is not on the list.
func (g *Generator) Gesture(conf model.Conference, items []model.Item) Gesture {
	gs := Gesture{Conference: conf, ItemID: missingID}
	if len(items) > 0 && g.faker.Number(1, 20) > 1 {
		gs.ItemID = items[g.faker.Number(0, len(items)-1)].ID
	}
	gs.Target = g.faker.Number(-1, len(items))

	switch n := g.faker.Number(1, 10); {
	case n <= 5:
		gs.Kind = KindReorder
	case n <= 9:
		gs.Kind = KindDrag
	default:
		gs.Kind = KindCancel
	}
	return gs
}

// Conference picks one of the two conferences.
func (g *Generator) Conference() model.Conference {
	return model.Conferences[g.faker.Number(0, len(model.Conferences)-1)]
}
