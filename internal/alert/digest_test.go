package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wastenot/internal/repository"
)

func TestBuildDigest(t *testing.T) {
	today := date(2026, 10, 15)
	r := repository.AlertRecipient{
		UserID: "u1",
		Email:  "cara@example.com",
		Items: []repository.ExpiringItem{
			{Name: "Yogurt <2 pack>", ExpiryDate: date(2026, 10, 12)},
			{Name: "Milk", ExpiryDate: date(2026, 10, 16)},
		},
	}

	d, err := BuildDigest(r, today, "https://wastenot.example")
	require.NoError(t, err)

	assert.Equal(t, "cara@example.com", d.To)
	assert.Contains(t, d.Body, "Hi cara,")
	assert.Contains(t, d.Body, "Yogurt &lt;2 pack&gt;", "item names are escaped")
	assert.Contains(t, d.Body, "expired 3 days ago")
	assert.Contains(t, d.Body, "expires tomorrow")
	assert.Contains(t, d.Body, `href="https://wastenot.example/pantry"`)
}

func TestDescribe(t *testing.T) {
	today := date(2026, 10, 15)

	assert.Equal(t, "expired yesterday", describe(date(2026, 10, 14), today))
	assert.Equal(t, "expires today", describe(today, today))
	assert.Equal(t, "expires in 3 days", describe(date(2026, 10, 18), today))
}
