// Package repository declares the relational data service the stores depend on.
//
// Each interface is table-scoped and speaks in model types. Every read and
// write that touches user-owned rows takes the owning user's ID and filters
// on it, so one user can never see or change another user's rows even with a
// guessed ID: a foreign row simply reads as "not found".
//
// The concrete implementation lives in repository/sqlstore (SQLite or Postgres).
// Tests use hand-written fakes that satisfy the same interfaces.
package repository

import (
	"context"

	"github.com/sakif/wastenot/internal/model"
)

// UserRepository stores identity-provider accounts.
type UserRepository interface {
	// Create inserts a new account. Returns apperror.ErrConflict if the email is taken.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGoogle finds the account by Google ID, else by email (linking it),
	// else creates it. The caller's struct is filled with the stored row.
	UpsertGoogle(ctx context.Context, user *model.User) error
}

// PantryRepository stores pantry items.
type PantryRepository interface {
	Create(ctx context.Context, item *model.PantryItem) error
	// ListByUser returns the user's items newest-created first.
	ListByUser(ctx context.Context, userID string) ([]model.PantryItem, error)
	// SetStatus applies a status override to one item. A terminal status sets
	// the disposition and leaves freshness alone; a freshness status sets
	// freshness and clears the disposition.
	// Returns apperror.ErrNotFound if no item (id, userID) exists.
	SetStatus(ctx context.Context, userID, id string, status model.Status) error
	// Delete removes the item if present. Deleting an absent item is not an error.
	Delete(ctx context.Context, userID, id string) error
}

// DonationRepository stores donation records.
type DonationRepository interface {
	Create(ctx context.Context, rec *model.DonationRecord) error
	ListByUser(ctx context.Context, userID string) ([]model.DonationRecord, error)
	SetStatus(ctx context.Context, userID, id string, status model.DonationStatus) error
}

// SaleRepository stores sale records.
type SaleRepository interface {
	Create(ctx context.Context, rec *model.SaleRecord) error
	ListByUser(ctx context.Context, userID string) ([]model.SaleRecord, error)
	SetStatus(ctx context.Context, userID, id string, status model.SaleStatus) error
}

// ProfileRepository stores the one-per-user profile.
type ProfileRepository interface {
	// GetOrCreateProfile returns the user's profile, inserting defaults first
	// if none exists. Safe to call repeatedly; never creates a second row.
	GetOrCreateProfile(ctx context.Context, defaults *model.UserProfile) (*model.UserProfile, error)
	UpdateProfile(ctx context.Context, profile *model.UserProfile) error
}

// StatsRepository stores the one-per-user sustainability counters.
type StatsRepository interface {
	GetOrCreateStats(ctx context.Context, defaults *model.SustainabilityStats) (*model.SustainabilityStats, error)
	UpdateStats(ctx context.Context, stats *model.SustainabilityStats) error
}

// ExpiringItem is one row of the expiry-alert digest.
type ExpiringItem struct {
	Name       string
	ExpiryDate model.Date
}

// AlertRecipient is a user with at least one active item expiring soon.
type AlertRecipient struct {
	UserID   string
	Email    string
	FullName string
	Items    []ExpiringItem
}

// AlertRepository answers the sweeper's one cross-user question.
type AlertRepository interface {
	// ExpiringBefore returns users with active items whose expiry date is on
	// or before cutoff, grouped by user.
	ExpiringBefore(ctx context.Context, cutoff model.Date) ([]AlertRecipient, error)
}
