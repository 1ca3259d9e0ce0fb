package reorder

import "github.com/okian/pickem/internal/domain/model"

// Row is a standings entry as displayed, flagged when it is a playoff place.
type Row struct {
	model.Item
	Playoff bool `json:"playoff"`
}

// View returns at most maxDisplayed rows; the first playoffSpots are flagged.
func View(items []model.Item, playoffSpots, maxDisplayed int) []Row {
	n := len(items)
	if maxDisplayed >= 0 && maxDisplayed < n {
		n = maxDisplayed
	}
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		rows[i] = Row{Item: items[i].Clone(), Playoff: items[i].Position <= playoffSpots}
	}
	return rows
}
