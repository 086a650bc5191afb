package model

import (
	"fmt"
	"time"
)

// ExpiringWindowDays is how many days ahead (inclusive) an item counts as
// "expiring". An item expiring today through today+3 is expiring.
const ExpiringWindowDays = 3

// Freshness is the date-derived classification of a pantry item.
type Freshness string

const (
	FreshnessFresh    Freshness = "fresh"
	FreshnessExpiring Freshness = "expiring"
	FreshnessExpired  Freshness = "expired"
)

// Disposition is the terminal outcome of a pantry item. Once set it is sticky:
// recomputing freshness never clears it.
type Disposition string

const (
	DispositionUsed    Disposition = "used"
	DispositionDonated Disposition = "donated"
	DispositionSold    Disposition = "sold"
)

// Status is the single combined value the UI shows and the API accepts:
// any Freshness or Disposition value.
type Status string

// ParseStatus validates s as one of the six status values.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case Status(FreshnessFresh), Status(FreshnessExpiring), Status(FreshnessExpired),
		Status(DispositionUsed), Status(DispositionDonated), Status(DispositionSold):
		return st, nil
	}
	return "", fmt.Errorf("unknown pantry status %q", s)
}

// IsTerminal reports whether s is a disposition rather than a freshness.
func (s Status) IsTerminal() bool {
	switch Disposition(s) {
	case DispositionUsed, DispositionDonated, DispositionSold:
		return true
	}
	return false
}

// Category is the enumerated food group of a pantry item.
type Category string

const (
	CategoryVegetables Category = "vegetables"
	CategoryFruits     Category = "fruits"
	CategoryDairy      Category = "dairy"
	CategoryMeat       Category = "meat"
	CategoryGrains     Category = "grains"
	CategoryPantry     Category = "pantry"
	CategoryBeverages  Category = "beverages"
	CategoryOther      Category = "other"
)

// Categories lists every Category in display order.
var Categories = []Category{
	CategoryVegetables, CategoryFruits, CategoryDairy, CategoryMeat,
	CategoryGrains, CategoryPantry, CategoryBeverages, CategoryOther,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DefaultUnit is used when an item is added without a unit.
const DefaultUnit = "pieces"

// PantryItem is a tracked food unit owned by one user.
//
// Freshness and Disposition are two separate fields on purpose: an item can be
// "expired" by date and "sold" at the same time, and both facts are true. The
// combined Status() is what the UI shows.
type PantryItem struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Name        string       `json:"name"`
	Quantity    float64      `json:"quantity"`
	Unit        string       `json:"unit"`
	ExpiryDate  *Date        `json:"expiryDate,omitempty"`
	Category    Category     `json:"category"`
	Freshness   Freshness    `json:"freshness"`
	Disposition *Disposition `json:"disposition,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ComputeFreshness classifies an expiry date relative to today.
//
//	no date                 → fresh
//	before today            → expired
//	today .. today+3        → expiring
//	later                   → fresh
func ComputeFreshness(expiry *Date, today Date) Freshness {
	if expiry == nil || expiry.IsZero() {
		return FreshnessFresh
	}
	if expiry.Before(today) {
		return FreshnessExpired
	}
	if expiry.DaysSince(today) <= ExpiringWindowDays {
		return FreshnessExpiring
	}
	return FreshnessFresh
}

// Refresh recomputes Freshness from the expiry date. Disposition is untouched.
func (p *PantryItem) Refresh(today Date) {
	p.Freshness = ComputeFreshness(p.ExpiryDate, today)
}

// Status returns the disposition when one is set, otherwise the freshness.
func (p *PantryItem) Status() Status {
	if p.Disposition != nil {
		return Status(*p.Disposition)
	}
	return Status(p.Freshness)
}

// Active reports whether the item is still in the pantry (no disposition).
func (p *PantryItem) Active() bool {
	return p.Disposition == nil
}

// Available reports whether the item can still be donated or sold.
func (p *PantryItem) Available() bool {
	return p.Active() && p.Freshness != FreshnessExpired
}
