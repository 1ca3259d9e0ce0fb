package dragsim

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
	"github.com/okian/pickem/internal/domain/reorder"
	"github.com/okian/pickem/internal/domain/types"
)

// itemsOf turns a full standings view back into items.
func itemsOf(v types.StandingsView) ([]model.Item, error) {
	if len(v.Rows) != v.Total {
		return nil, fmt.Errorf("%w: %s shows %d of %d rows", ErrTruncated, v.Conference, len(v.Rows), v.Total)
	}
	out := make([]model.Item, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.Item
	}
	return out, nil
}

// checkPermutation verifies got holds exactly the ids of before, numbered
// 1..N in order.
func checkPermutation(before, got []model.Item) error {
	if len(got) != len(before) {
		return fmt.Errorf("%w: %d items became %d", ErrInvariant, len(before), len(got))
	}
	for i, it := range got {
		if it.Position != i+1 {
			return fmt.Errorf("%w: row %d has position %d", ErrInvariant, i, it.Position)
		}
	}
	a, b := model.IDs(before), model.IDs(got)
	sort.Strings(a)
	sort.Strings(b)
	if diff := cmp.Diff(a, b); diff != "" {
		return fmt.Errorf("%w: ids changed (-before +after):\n%s", ErrInvariant, diff)
	}
	return nil
}

// checkStep compares the server's answer to a gesture with the local model.
func checkStep(before, want []model.Item, res standingsResult) error {
	got, err := itemsOf(res.Standings)
	if err != nil {
		return err
	}
	if err := checkPermutation(before, got); err != nil {
		return err
	}
	if diff := cmp.Diff(model.IDs(want), model.IDs(got)); diff != "" {
		return fmt.Errorf("%w: order differs (-want +got):\n%s", ErrInvariant, diff)
	}
	if changed := reorder.Changed(before, want); res.Changed != changed {
		return fmt.Errorf("%w: changed=%t, want %t", ErrInvariant, res.Changed, changed)
	}
	return nil
}

// checkSaved verifies a saved standings payload matches the local model.
func checkSaved(raw json.RawMessage, want map[model.Conference][]model.Item) error {
	var st payload.Standings
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("decode saved standings: %w", err)
	}
	if err := st.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	saved := map[model.Conference][]model.Item{
		model.ConferenceEastern: st.Eastern,
		model.ConferenceWestern: st.Western,
	}
	for _, conf := range model.Conferences {
		if diff := cmp.Diff(model.IDs(want[conf]), model.IDs(saved[conf])); diff != "" {
			return fmt.Errorf("%w: saved %s differs (-want +got):\n%s", ErrInvariant, conf, diff)
		}
	}
	return nil
}
