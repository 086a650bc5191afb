package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
)

var errBackend = errors.New("backend unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedNow pins "today" to 2026-10-15.
func fixedNow() time.Time {
	return time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
}

// fakePantryRepo stores items per user in insertion order.
type fakePantryRepo struct {
	mu        sync.Mutex
	items     []model.PantryItem
	seq       int
	createErr error
	listErr   error
	statusErr error
	deleteErr error
}

func (f *fakePantryRepo) Create(ctx context.Context, it *model.PantryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	it.ID = fmt.Sprintf("item-%d", f.seq)
	it.CreatedAt = fixedNow().Add(time.Duration(f.seq) * time.Second)
	it.UpdatedAt = it.CreatedAt
	f.items = append(f.items, *it)
	return nil
}

func (f *fakePantryRepo) ListByUser(ctx context.Context, userID string) ([]model.PantryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.PantryItem{}
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

func (f *fakePantryRepo) SetStatus(ctx context.Context, userID, id string, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].UserID == userID {
			if status.IsTerminal() {
				d := model.Disposition(status)
				f.items[i].Disposition = &d
			} else {
				f.items[i].Freshness = model.Freshness(status)
				f.items[i].Disposition = nil
			}
			return nil
		}
	}
	return apperror.NotFound("pantry item", id)
}

func (f *fakePantryRepo) Delete(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.items[:0]
	for _, it := range f.items {
		if !(it.ID == id && it.UserID == userID) {
			kept = append(kept, it)
		}
	}
	f.items = kept
	return nil
}

type fakeDonationRepo struct {
	mu        sync.Mutex
	recs      []model.DonationRecord
	createErr error
	listErr   error
}

func (f *fakeDonationRepo) Create(ctx context.Context, r *model.DonationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	r.ID = fmt.Sprintf("don-%d", len(f.recs)+1)
	r.CreatedAt = fixedNow()
	f.recs = append(f.recs, *r)
	return nil
}

func (f *fakeDonationRepo) ListByUser(ctx context.Context, userID string) ([]model.DonationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.DonationRecord{}
	for i := len(f.recs) - 1; i >= 0; i-- {
		if f.recs[i].UserID == userID {
			out = append(out, f.recs[i])
		}
	}
	return out, nil
}

func (f *fakeDonationRepo) SetStatus(ctx context.Context, userID, id string, status model.DonationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recs {
		if f.recs[i].ID == id && f.recs[i].UserID == userID {
			f.recs[i].Status = status
			return nil
		}
	}
	return apperror.NotFound("donation", id)
}

type fakeSaleRepo struct {
	mu        sync.Mutex
	recs      []model.SaleRecord
	createErr error
	listErr   error
}

func (f *fakeSaleRepo) Create(ctx context.Context, r *model.SaleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	r.ID = fmt.Sprintf("sale-%d", len(f.recs)+1)
	r.CreatedAt = fixedNow()
	f.recs = append(f.recs, *r)
	return nil
}

func (f *fakeSaleRepo) ListByUser(ctx context.Context, userID string) ([]model.SaleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.SaleRecord{}
	for i := len(f.recs) - 1; i >= 0; i-- {
		if f.recs[i].UserID == userID {
			out = append(out, f.recs[i])
		}
	}
	return out, nil
}

func (f *fakeSaleRepo) SetStatus(ctx context.Context, userID, id string, status model.SaleStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recs {
		if f.recs[i].ID == id && f.recs[i].UserID == userID {
			f.recs[i].Status = status
			return nil
		}
	}
	return apperror.NotFound("sale", id)
}

// fakeProfileRepo implements both ProfileRepository and StatsRepository.
type fakeProfileRepo struct {
	mu        sync.Mutex
	profiles  map[string]model.UserProfile
	stats     map[string]model.SustainabilityStats
	getErr    error
	updateErr error
	creates   int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		profiles: make(map[string]model.UserProfile),
		stats:    make(map[string]model.SustainabilityStats),
	}
}

func (f *fakeProfileRepo) GetOrCreateProfile(ctx context.Context, d *model.UserProfile) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[d.UserID]
	if !ok {
		f.creates++
		p = *d
		p.ID = "profile-" + d.UserID
		f.profiles[d.UserID] = p
	}
	p.Badges = append([]string{}, p.Badges...)
	return &p, nil
}

func (f *fakeProfileRepo) UpdateProfile(ctx context.Context, p *model.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored := *p
	stored.Badges = append([]string{}, p.Badges...)
	f.profiles[p.UserID] = stored
	return nil
}

func (f *fakeProfileRepo) GetOrCreateStats(ctx context.Context, d *model.SustainabilityStats) (*model.SustainabilityStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.stats[d.UserID]
	if !ok {
		s = *d
		s.ID = "stats-" + d.UserID
		f.stats[d.UserID] = s
	}
	return &s, nil
}

func (f *fakeProfileRepo) UpdateStats(ctx context.Context, s *model.SustainabilityStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.stats[s.UserID] = *s
	return nil
}
