package model

import "strings"

// Category names one kind of prediction a user makes.
type Category string

const (
	CategoryStandings Category = "standings"
	CategoryAllNBA    Category = "all_nba"
	CategoryAwards    Category = "awards"
	CategoryProps     Category = "props"
)

// Categories lists every category in the order a new user works through them.
var Categories = []Category{CategoryStandings, CategoryAllNBA, CategoryAwards, CategoryProps}

// ParseCategory accepts the canonical names plus the "allnba" spelling.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standings":
		return CategoryStandings, true
	case "all_nba", "allnba", "all-nba":
		return CategoryAllNBA, true
	case "awards":
		return CategoryAwards, true
	case "props":
		return CategoryProps, true
	}
	return "", false
}

// Conference identifies one ordered standings list.
type Conference string

const (
	ConferenceEastern Conference = "eastern"
	ConferenceWestern Conference = "western"
)

// Conferences lists both conferences in display order.
var Conferences = []Conference{ConferenceEastern, ConferenceWestern}

// ParseConference accepts "eastern"/"east"/"western"/"west" in any case.
func ParseConference(s string) (Conference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eastern", "east":
		return ConferenceEastern, true
	case "western", "west":
		return ConferenceWestern, true
	}
	return "", false
}
