package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/repository"
)

// StatusUpdater is the one Pantry Store operation the Disposition Store uses.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status model.Status) error
}

// NewDonation is the input to CreateDonation. ItemID is optional.
type NewDonation struct {
	ItemID       string `json:"itemId"`
	ItemName     string `json:"itemName"     validate:"required"`
	Organization string `json:"organization" validate:"required"`
	ContactInfo  string `json:"contactInfo"`
	Notes        string `json:"notes"`
}

// NewSale is the input to CreateSale. ItemID is optional.
type NewSale struct {
	ItemID        string          `json:"itemId"`
	ItemName      string          `json:"itemName"      validate:"required"`
	Price         decimal.Decimal `json:"price"`
	Platform      string          `json:"platform"      validate:"required"`
	Description   string          `json:"description"`
	ContactMethod string          `json:"contactMethod"`
}

// DonationResult reports a created donation. StatusSynced is false when the
// referenced pantry item could not be marked donated; the record exists
// either way. With no ItemID there is nothing to sync and it is true.
type DonationResult struct {
	Record       *model.DonationRecord `json:"record"`
	StatusSynced bool                  `json:"statusSynced"`
}

// SaleResult is the sale counterpart of DonationResult.
type SaleResult struct {
	Record       *model.SaleRecord `json:"record"`
	StatusSynced bool              `json:"statusSynced"`
}

// DispositionStore is one user's donation and sale log.
type DispositionStore struct {
	donations repository.DonationRepository
	sales     repository.SaleRepository
	pantry    StatusUpdater
	userID    string
	notify    Notifier
	logger    *slog.Logger

	mu           sync.RWMutex
	donationRecs []model.DonationRecord
	saleRecs     []model.SaleRecord
}

// NewDispositionStore creates a store for userID. pantry receives the
// donated/sold status update after each new record.
func NewDispositionStore(
	donations repository.DonationRepository,
	sales repository.SaleRepository,
	pantry StatusUpdater,
	userID string,
	notify Notifier,
	logger *slog.Logger,
) *DispositionStore {
	if notify == nil {
		notify = Discard
	}
	return &DispositionStore{
		donations: donations,
		sales:     sales,
		pantry:    pantry,
		userID:    userID,
		notify:    notify,
		logger:    logger.With(slog.String("store", "disposition")),
	}
}

func (s *DispositionStore) requireUser() error {
	if s.userID == "" {
		return apperror.PreconditionFailed("no signed-in user")
	}
	return nil
}

// List fetches donations and sales concurrently, each newest first. Either
// failure fails the whole call and leaves both snapshots as they were.
func (s *DispositionStore) List(ctx context.Context) ([]model.DonationRecord, []model.SaleRecord, error) {
	if err := s.requireUser(); err != nil {
		return nil, nil, err
	}

	var (
		donations []model.DonationRecord
		sales     []model.SaleRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		donations, err = s.donations.ListByUser(gctx, s.userID)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = s.sales.ListByUser(gctx, s.userID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("loading donation/sale records", slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to load donation/sale records")
		return nil, nil, err
	}

	s.mu.Lock()
	s.donationRecs, s.saleRecs = donations, sales
	s.mu.Unlock()
	return s.Donations(), s.Sales(), nil
}

// CreateDonation records a donation, then marks the pantry item donated.
func (s *DispositionStore) CreateDonation(ctx context.Context, in NewDonation) (*DonationResult, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	if err := firstErr(required("itemName", in.ItemName), required("organization", in.Organization)); err != nil {
		s.notify.Notify(LevelError, err.Error())
		return nil, err
	}

	rec := &model.DonationRecord{
		UserID:       s.userID,
		ItemID:       optional(in.ItemID),
		ItemName:     strings.TrimSpace(in.ItemName),
		Organization: strings.TrimSpace(in.Organization),
		ContactInfo:  strings.TrimSpace(in.ContactInfo),
		Notes:        strings.TrimSpace(in.Notes),
		Status:       model.DonationCompleted,
	}
	if err := s.donations.Create(ctx, rec); err != nil {
		s.logger.Error("creating donation", slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to record donation")
		return nil, err
	}

	synced := s.syncPantry(ctx, rec.ItemID, model.Status(model.DispositionDonated))

	s.mu.Lock()
	s.donationRecs = append([]model.DonationRecord{*rec}, s.donationRecs...)
	s.mu.Unlock()

	s.notify.Notify(LevelSuccess, "Item donated successfully!")
	return &DonationResult{Record: rec, StatusSynced: synced}, nil
}

// CreateSale records a sale, then marks the pantry item sold.
func (s *DispositionStore) CreateSale(ctx context.Context, in NewSale) (*SaleResult, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	if err := firstErr(required("itemName", in.ItemName), required("platform", in.Platform)); err != nil {
		s.notify.Notify(LevelError, err.Error())
		return nil, err
	}
	if in.Price.IsNegative() {
		err := apperror.ValidationFailed("price", "price must not be negative")
		s.notify.Notify(LevelError, err.Error())
		return nil, err
	}

	rec := &model.SaleRecord{
		UserID:        s.userID,
		ItemID:        optional(in.ItemID),
		ItemName:      strings.TrimSpace(in.ItemName),
		Price:         in.Price.Round(2),
		Platform:      strings.TrimSpace(in.Platform),
		Description:   strings.TrimSpace(in.Description),
		ContactMethod: strings.TrimSpace(in.ContactMethod),
		Status:        model.SaleSold,
	}
	if err := s.sales.Create(ctx, rec); err != nil {
		s.logger.Error("creating sale", slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to record sale")
		return nil, err
	}

	synced := s.syncPantry(ctx, rec.ItemID, model.Status(model.DispositionSold))

	s.mu.Lock()
	s.saleRecs = append([]model.SaleRecord{*rec}, s.saleRecs...)
	s.mu.Unlock()

	s.notify.Notify(LevelSuccess, "Item sold successfully!")
	return &SaleResult{Record: rec, StatusSynced: synced}, nil
}

// syncPantry is the best-effort secondary write. A failure is logged and
// reported to the caller; it never undoes the record.
func (s *DispositionStore) syncPantry(ctx context.Context, itemID *string, status model.Status) bool {
	if itemID == nil {
		return true
	}
	if err := s.pantry.UpdateStatus(ctx, *itemID, status); err != nil {
		s.logger.Warn("pantry status not updated after disposition",
			slog.String("itemID", *itemID), slog.String("status", string(status)), slog.String("error", err.Error()))
		return false
	}
	return true
}

// AdvanceDonation moves a donation to another status.
func (s *DispositionStore) AdvanceDonation(ctx context.Context, id string, status model.DonationStatus) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if !status.Valid() {
		err := apperror.ValidationFailed("status", "unknown donation status "+string(status))
		s.notify.Notify(LevelError, err.Error())
		return err
	}
	if err := s.donations.SetStatus(ctx, s.userID, id, status); err != nil {
		s.logger.Error("updating donation status", slog.String("id", id), slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to update donation")
		return err
	}

	s.mu.Lock()
	for i := range s.donationRecs {
		if s.donationRecs[i].ID == id {
			s.donationRecs[i].Status = status
		}
	}
	s.mu.Unlock()
	return nil
}

// AdvanceSale moves a sale to another status.
func (s *DispositionStore) AdvanceSale(ctx context.Context, id string, status model.SaleStatus) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	if !status.Valid() {
		err := apperror.ValidationFailed("status", "unknown sale status "+string(status))
		s.notify.Notify(LevelError, err.Error())
		return err
	}
	if err := s.sales.SetStatus(ctx, s.userID, id, status); err != nil {
		s.logger.Error("updating sale status", slog.String("id", id), slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to update sale")
		return err
	}

	s.mu.Lock()
	for i := range s.saleRecs {
		if s.saleRecs[i].ID == id {
			s.saleRecs[i].Status = status
		}
	}
	s.mu.Unlock()
	return nil
}

// Donations returns a copy of the donation snapshot.
func (s *DispositionStore) Donations() []model.DonationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.DonationRecord{}, s.donationRecs...)
}

// Sales returns a copy of the sale snapshot.
func (s *DispositionStore) Sales() []model.SaleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.SaleRecord{}, s.saleRecs...)
}

// SalesTotal sums the price of every sale in the snapshot that was not
// cancelled.
func (s *DispositionStore) SalesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.Sales() {
		if r.Status != model.SaleCancelled {
			total = total.Add(r.Price)
		}
	}
	return total
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
