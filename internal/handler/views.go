package handler

import (
	"sort"

	"github.com/sakif/wastenot/internal/model"
)

// ItemView is a pantry item with its combined status spelled out.
type ItemView struct {
	model.PantryItem
	Status   model.Status `json:"status"`
	DaysLeft *int         `json:"daysLeft,omitempty"`
}

func viewItems(items []model.PantryItem, today model.Date) []ItemView {
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = ItemView{PantryItem: it, Status: it.Status()}
		if it.ExpiryDate != nil {
			d := it.ExpiryDate.DaysSince(today)
			out[i].DaysLeft = &d
		}
	}
	return out
}

// Badge is one achievement the dashboard can show.
type Badge struct {
	ID          string
	Name        string
	Description string
	Earned      bool
}

var badgeCatalog = []Badge{
	{ID: "leftover_hero", Name: "Leftover Hero", Description: "Used 50+ leftover items"},
	{ID: "green_guardian", Name: "Green Guardian", Description: "Saved 100kg CO2"},
	{ID: "waste_warrior", Name: "Waste Warrior", Description: "Zero waste for 7 days"},
}

func badgesFor(p *model.UserProfile) []Badge {
	out := make([]Badge, len(badgeCatalog))
	copy(out, badgeCatalog)
	if p == nil {
		return out
	}
	for i := range out {
		out[i].Earned = p.HasBadge(out[i].ID)
	}
	return out
}

// PantrySummary holds the counts shown above the pantry list.
type PantrySummary struct {
	Active   int
	Fresh    int
	Expiring int
	Expired  int
	Used     int
	// FreshPercent is the rounded share of active items that are fresh.
	FreshPercent int
}

func summarize(items []model.PantryItem) PantrySummary {
	var s PantrySummary
	for _, it := range items {
		if !it.Active() {
			if *it.Disposition == model.DispositionUsed {
				s.Used++
			}
			continue
		}
		s.Active++
		switch it.Freshness {
		case model.FreshnessFresh:
			s.Fresh++
		case model.FreshnessExpiring:
			s.Expiring++
		case model.FreshnessExpired:
			s.Expired++
		}
	}
	s.FreshPercent = percent(s.Fresh, s.Active)
	return s
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return (n*200 + total) / (2 * total)
}

// expiringSoon returns the active items that are expiring, soonest first.
// An item marked expiring by hand without a date sorts last.
func expiringSoon(items []ItemView) []ItemView {
	var out []ItemView
	for _, it := range items {
		if it.Active() && it.Freshness == model.FreshnessExpiring {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DaysLeft, out[j].DaysLeft
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return *a < *b
	})
	return out
}
