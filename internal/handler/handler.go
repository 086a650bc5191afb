// Package handler contains the HTTP handlers: the JSON API under /api, the
// sign-in endpoints under /auth, and the server-rendered pages.
//
// Handlers are glue. Each request builds the stores it needs for the
// signed-in user, calls one store operation per concern, and turns the
// result and the collected notices into JSON or a redirect with a flash
// message. No store outlives its request.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/wastenot/internal/blob"
	"github.com/sakif/wastenot/internal/repository"
	"github.com/sakif/wastenot/internal/store"
)

// Repositories are the tables the per-request stores read and write.
type Repositories struct {
	Users     repository.UserRepository
	Pantry    repository.PantryRepository
	Donations repository.DonationRepository
	Sales     repository.SaleRepository
	Profiles  repository.ProfileRepository
	Stats     repository.StatsRepository
}

// ReceiptArchive keeps a copy of scanned receipts. *blob.ReceiptStore
// implements it.
type ReceiptArchive interface {
	Put(ctx context.Context, userID string, img []byte) (*blob.Receipt, error)
}

// stores builds per-request stores over the shared repositories.
type stores struct {
	repos  Repositories
	logger *slog.Logger
	now    func() time.Time
}

func (s stores) pantry(userID string, n store.Notifier) *store.PantryStore {
	return store.NewPantryStore(s.repos.Pantry, userID, n, s.logger)
}

// dispositions returns the disposition store together with the pantry store
// it marks items on.
func (s stores) dispositions(userID string, n store.Notifier) (*store.DispositionStore, *store.PantryStore) {
	p := s.pantry(userID, n)
	return store.NewDispositionStore(s.repos.Donations, s.repos.Sales, p, userID, n, s.logger), p
}

// profile loads the account and returns a loaded profile store for it.
func (s stores) profile(ctx context.Context, userID string, n store.Notifier) (*store.ProfileStore, error) {
	user, err := s.repos.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ps := store.NewProfileStore(s.repos.Profiles, s.repos.Stats, user, n, s.logger)
	if _, _, err := ps.Load(ctx); err != nil {
		return nil, err
	}
	return ps, nil
}

var validate = newValidator()
