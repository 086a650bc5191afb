package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/repository"
)

// NewPantryItem is the input to PantryStore.Add. Quantity is a pointer so a
// missing quantity can be told apart from zero.
type NewPantryItem struct {
	Name       string         `json:"name"       validate:"required"`
	Quantity   *float64       `json:"quantity"   validate:"required"`
	Unit       string         `json:"unit"`
	ExpiryDate *model.Date    `json:"expiryDate"`
	Category   model.Category `json:"category"`
}

// PantryStore is one user's pantry.
type PantryStore struct {
	repo   repository.PantryRepository
	userID string
	notify Notifier
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	items []model.PantryItem
}

// NewPantryStore creates a store for userID. An empty userID is allowed; every
// operation then fails with a precondition error.
func NewPantryStore(repo repository.PantryRepository, userID string, notify Notifier, logger *slog.Logger) *PantryStore {
	if notify == nil {
		notify = Discard
	}
	return &PantryStore{
		repo:   repo,
		userID: userID,
		notify: notify,
		logger: logger.With(slog.String("store", "pantry")),
		now:    time.Now,
	}
}

func (s *PantryStore) requireUser() error {
	if s.userID == "" {
		return apperror.PreconditionFailed("no signed-in user")
	}
	return nil
}

// List fetches every item of the user, newest first, with freshness
// recomputed for today, and replaces the snapshot.
func (s *PantryStore) List(ctx context.Context) ([]model.PantryItem, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}

	items, err := s.repo.ListByUser(ctx, s.userID)
	if err != nil {
		s.logger.Error("loading pantry items", slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to load pantry items")
		return nil, err
	}

	day := today(s.now)
	for i := range items {
		items[i].Refresh(day)
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return s.Items(), nil
}

// Add validates, persists, and prepends a new item.
func (s *PantryStore) Add(ctx context.Context, in NewPantryItem) (*model.PantryItem, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}

	item, err := s.build(in)
	if err != nil {
		s.notify.Notify(LevelError, err.Error())
		return nil, err
	}

	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("adding pantry item", slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to add item")
		return nil, err
	}

	s.mu.Lock()
	s.items = append([]model.PantryItem{*item}, s.items...)
	s.mu.Unlock()

	s.notify.Notify(LevelSuccess, "Item added to pantry")
	return item, nil
}

func (s *PantryStore) build(in NewPantryItem) (*model.PantryItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if in.Quantity == nil {
		return nil, apperror.ValidationFailed("quantity", "quantity is required")
	}

	category := in.Category
	if category == "" {
		category = model.CategoryOther
	}
	if !category.Valid() {
		return nil, apperror.ValidationFailed("category", "unknown category "+string(category))
	}

	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = model.DefaultUnit
	}

	item := &model.PantryItem{
		UserID:     s.userID,
		Name:       name,
		Quantity:   *in.Quantity,
		Unit:       unit,
		ExpiryDate: in.ExpiryDate,
		Category:   category,
	}
	item.Refresh(today(s.now))
	return item, nil
}

// UpdateStatus persists a status override and applies it to the snapshot.
// Outcomes are returned, not notified.
func (s *PantryStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if _, err := model.ParseStatus(string(status)); err != nil {
		return apperror.ValidationFailed("status", err.Error())
	}

	if err := s.repo.SetStatus(ctx, s.userID, id, status); err != nil {
		s.logger.Error("updating pantry item status",
			slog.String("itemID", id), slog.String("status", string(status)), slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if status.IsTerminal() {
			d := model.Disposition(status)
			s.items[i].Disposition = &d
		} else {
			s.items[i].Freshness = model.Freshness(status)
			s.items[i].Disposition = nil
		}
		s.items[i].UpdatedAt = s.now()
	}
	s.mu.Unlock()
	return nil
}

// Remove deletes an item. Removing an absent item succeeds.
func (s *PantryStore) Remove(ctx context.Context, id string) error {
	if err := s.requireUser(); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, s.userID, id); err != nil {
		s.logger.Error("removing pantry item", slog.String("itemID", id), slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to remove item")
		return err
	}

	s.mu.Lock()
	kept := s.items[:0:0]
	for _, it := range s.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.mu.Unlock()

	s.notify.Notify(LevelSuccess, "Item removed from pantry")
	return nil
}

// Items returns a copy of the snapshot.
func (s *PantryStore) Items() []model.PantryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PantryItem, len(s.items))
	copy(out, s.items)
	return out
}

// Search filters the snapshot by a case-insensitive substring of the name.
// An empty term returns everything.
func (s *PantryStore) Search(term string) []model.PantryItem {
	term = strings.ToLower(strings.TrimSpace(term))
	items := s.Items()
	if term == "" {
		return items
	}
	out := items[:0]
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), term) {
			out = append(out, it)
		}
	}
	return out
}

// Available returns the snapshot items that can still be donated or sold.
func (s *PantryStore) Available() []model.PantryItem {
	items := s.Items()
	out := items[:0]
	for _, it := range items {
		if it.Available() {
			out = append(out, it)
		}
	}
	return out
}

// Find returns the snapshot item with id.
func (s *PantryStore) Find(id string) (model.PantryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.PantryItem{}, false
}
