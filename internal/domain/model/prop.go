package model

// Over/under choices for a prop.
const (
	PickOver  = "over"
	PickUnder = "under"
)

// Prop is a season-long statistical line a user picks over or under on.
type Prop struct {
	ID      string  `json:"id" yaml:"id"`
	Label   string  `json:"label" yaml:"label"`
	Line    float64 `json:"line" yaml:"line"`
	Current float64 `json:"current" yaml:"current"`
}

// PropPick records a user's side of a prop.
type PropPick struct {
	PropID     string `json:"propId" yaml:"prop_id"`
	Prediction string `json:"prediction" yaml:"prediction"`
}

// ValidPick reports whether p is "over" or "under".
func ValidPick(p string) bool { return p == PickOver || p == PickUnder }
