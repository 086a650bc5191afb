package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wastenot/internal/model"
)

var viewToday = model.Date{Year: 2026, Month: 3, Day: 10}

func item(id string, expiresIn *int, disp *model.Disposition) model.PantryItem {
	it := model.PantryItem{ID: id, Name: id}
	if expiresIn != nil {
		d := viewToday.AddDays(*expiresIn)
		it.ExpiryDate = &d
	}
	it.Disposition = disp
	it.Refresh(viewToday)
	return it
}

func intp(n int) *int { return &n }

func dispp(d model.Disposition) *model.Disposition { return &d }

func TestViewItems(t *testing.T) {
	views := viewItems([]model.PantryItem{
		item("milk", intp(1), nil),
		item("salt", nil, nil),
		item("bread", intp(-2), dispp(model.DispositionDonated)),
	}, viewToday)

	require.Len(t, views, 3)
	assert.Equal(t, model.Status("expiring"), views[0].Status)
	assert.Equal(t, 1, *views[0].DaysLeft)
	assert.Equal(t, model.Status("fresh"), views[1].Status)
	assert.Nil(t, views[1].DaysLeft)
	assert.Equal(t, model.Status("donated"), views[2].Status)
	assert.Equal(t, -2, *views[2].DaysLeft)
}

func TestSummarize(t *testing.T) {
	s := summarize([]model.PantryItem{
		item("a", intp(10), nil),
		item("b", nil, nil),
		item("c", intp(2), nil),
		item("d", intp(-1), nil),
		item("e", intp(10), dispp(model.DispositionUsed)),
		item("f", intp(10), dispp(model.DispositionSold)),
	})

	assert.Equal(t, PantrySummary{Active: 4, Fresh: 2, Expiring: 1, Expired: 1, Used: 1, FreshPercent: 50}, s)
	assert.Equal(t, PantrySummary{}, summarize(nil))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		n, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percent(tt.n, tt.total), "%d/%d", tt.n, tt.total)
	}
}

func TestExpiringSoon(t *testing.T) {
	views := viewItems([]model.PantryItem{
		item("later", intp(3), nil),
		item("fresh", intp(9), nil),
		item("today", intp(0), nil),
		item("used", intp(1), dispp(model.DispositionUsed)),
		item("tomorrow", intp(1), nil),
	}, viewToday)
	// Marked expiring by hand, no date.
	manual := ItemView{PantryItem: model.PantryItem{ID: "manual", Freshness: model.FreshnessExpiring}, Status: "expiring"}
	views = append([]ItemView{manual}, views...)

	got := expiringSoon(views)
	var ids []string
	for _, v := range got {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"today", "tomorrow", "later", "manual"}, ids)
}

func TestBadgesFor(t *testing.T) {
	none := badgesFor(nil)
	require.Len(t, none, 3)
	for _, b := range none {
		assert.False(t, b.Earned, b.ID)
	}

	p := model.NewProfile("u1", "Ana")
	p.Badges = []string{"green_guardian"}
	got := badgesFor(p)
	assert.False(t, got[0].Earned)
	assert.True(t, got[1].Earned)
	assert.Equal(t, "Green Guardian", got[1].Name)

	assert.False(t, badgeCatalog[1].Earned, "catalog is not mutated")
}
