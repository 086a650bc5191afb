package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(d Date) *Date { return &d }

func TestComputeFreshness(t *testing.T) {
	today := Date{Year: 2026, Month: time.October, Day: 15}

	tests := []struct {
		name   string
		expiry *Date
		want   Freshness
	}{
		{"no expiry date", nil, FreshnessFresh},
		{"zero date", datePtr(Date{}), FreshnessFresh},
		{"long past", datePtr(today.AddDays(-30)), FreshnessExpired},
		{"yesterday", datePtr(today.AddDays(-1)), FreshnessExpired},
		{"today", datePtr(today), FreshnessExpiring},
		{"tomorrow", datePtr(today.AddDays(1)), FreshnessExpiring},
		{"in three days", datePtr(today.AddDays(3)), FreshnessExpiring},
		{"in four days", datePtr(today.AddDays(4)), FreshnessFresh},
		{"across a month boundary", datePtr(Date{Year: 2026, Month: time.November, Day: 1}), FreshnessFresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeFreshness(tt.expiry, today))
		})
	}
}

func TestRefresh_KeepsDisposition(t *testing.T) {
	today := Date{Year: 2026, Month: time.October, Day: 15}
	sold := DispositionSold
	item := PantryItem{
		ExpiryDate:  datePtr(today.AddDays(-10)),
		Freshness:   FreshnessFresh,
		Disposition: &sold,
	}

	item.Refresh(today)

	assert.Equal(t, FreshnessExpired, item.Freshness)
	require.NotNil(t, item.Disposition)
	assert.Equal(t, Status(DispositionSold), item.Status())
}

func TestStatus_FallsBackToFreshness(t *testing.T) {
	item := PantryItem{Freshness: FreshnessExpiring}
	assert.Equal(t, Status(FreshnessExpiring), item.Status())
	assert.True(t, item.Available())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"fresh", "expiring", "expired", "used", "donated", "sold"} {
		st, err := ParseStatus(s)
		assert.NoError(t, err, s)
		assert.Equal(t, Status(s), st)
	}

	_, err := ParseStatus("rotten")
	assert.Error(t, err)

	assert.True(t, Status("donated").IsTerminal())
	assert.False(t, Status("expired").IsTerminal())
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-02-28"`), &d))
	assert.Equal(t, Date{Year: 2026, Month: time.February, Day: 28}, d)
	assert.Equal(t, "2026-03-01", d.AddDays(1).String())

	assert.Error(t, json.Unmarshal([]byte(`"28/02/2026"`), &d))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FullName: " Ada Lovelace ", Email: "ada@example.com"}).DisplayName())
	assert.Equal(t, "ada", (&User{Email: "ada@example.com"}).DisplayName())
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("snacks").Valid())
	assert.False(t, Category("").Valid())
}
