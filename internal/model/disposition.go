package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationStatus is the lifecycle state of a donation record.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
)

// Valid reports whether s is a known donation status.
func (s DonationStatus) Valid() bool {
	return s == DonationPending || s == DonationCompleted
}

// SaleStatus is the lifecycle state of a sale record.
type SaleStatus string

const (
	SaleListed    SaleStatus = "listed"
	SaleSold      SaleStatus = "sold"
	SaleCancelled SaleStatus = "cancelled"
)

// Valid reports whether s is a known sale status.
func (s SaleStatus) Valid() bool {
	return s == SaleListed || s == SaleSold || s == SaleCancelled
}

// DonationRecord logs surplus food given to an organisation.
//
// ItemName is a denormalised copy: the record must still read sensibly after
// the pantry item it came from has been deleted. ItemID is nil in that case
// or when the donation was never tied to an item.
type DonationRecord struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	ItemID       *string        `json:"itemId,omitempty"`
	ItemName     string         `json:"itemName"`
	Organization string         `json:"organization"`
	ContactInfo  string         `json:"contactInfo,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Status       DonationStatus `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SaleRecord logs surplus food sold on some platform.
// Price is a decimal so that 2.10 stays 2.10.
type SaleRecord struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	ItemID        *string         `json:"itemId,omitempty"`
	ItemName      string          `json:"itemName"`
	Price         decimal.Decimal `json:"price"`
	Platform      string          `json:"platform"`
	Description   string          `json:"description,omitempty"`
	ContactMethod string          `json:"contactMethod,omitempty"`
	Status        SaleStatus      `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}
