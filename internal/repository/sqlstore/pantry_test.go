package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
)

func newItem(userID, name string, expiry *model.Date) *model.PantryItem {
	return &model.PantryItem{
		UserID:     userID,
		Name:       name,
		Quantity:   1,
		Unit:       model.DefaultUnit,
		ExpiryDate: expiry,
		Category:   model.CategoryDairy,
		Freshness:  model.FreshnessFresh,
	}
}

func TestPantryCreateAndList_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	withClock(db, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	user := createTestUser(t, db, "pantry@example.com")
	ctx := context.Background()

	expiry := model.Date{Year: 2026, Month: time.October, Day: 20}
	for _, name := range []string{"Bread", "Eggs", "Milk"} {
		if err := db.Pantry().Create(ctx, newItem(user.ID, name, &expiry)); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	items, err := db.Pantry().ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].Name != "Milk" || items[2].Name != "Bread" {
		t.Errorf("order = %s, %s, %s; want newest first", items[0].Name, items[1].Name, items[2].Name)
	}
	if items[0].ExpiryDate == nil || *items[0].ExpiryDate != expiry {
		t.Errorf("ExpiryDate = %v, want %v", items[0].ExpiryDate, expiry)
	}
	if items[0].Disposition != nil {
		t.Error("new item should have no disposition")
	}
}

func TestPantryList_NoExpiryDate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "nodate@example.com")
	ctx := context.Background()

	if err := db.Pantry().Create(ctx, newItem(user.ID, "Rice", nil)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	items, err := db.Pantry().ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if items[0].ExpiryDate != nil {
		t.Errorf("ExpiryDate = %v, want nil", items[0].ExpiryDate)
	}
}

func TestPantryList_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	ctx := context.Background()

	if err := db.Pantry().Create(ctx, newItem(alice.ID, "Cheese", nil)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	items, err := db.Pantry().ListByUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("bob sees %d of alice's items", len(items))
	}
	if items == nil {
		t.Error("ListByUser() should return an empty slice, not nil")
	}
}

func TestPantrySetStatus(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "status@example.com")
	ctx := context.Background()
	item := newItem(user.ID, "Yogurt", nil)
	if err := db.Pantry().Create(ctx, item); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := db.Pantry().SetStatus(ctx, user.ID, item.ID, model.Status(model.FreshnessExpired)); err != nil {
		t.Fatalf("SetStatus(expired) error = %v", err)
	}
	if err := db.Pantry().SetStatus(ctx, user.ID, item.ID, model.Status(model.DispositionSold)); err != nil {
		t.Fatalf("SetStatus(sold) error = %v", err)
	}

	items, _ := db.Pantry().ListByUser(ctx, user.ID)
	if items[0].Freshness != model.FreshnessExpired {
		t.Errorf("Freshness = %q, want expired (terminal status must not touch it)", items[0].Freshness)
	}
	if items[0].Disposition == nil || *items[0].Disposition != model.DispositionSold {
		t.Errorf("Disposition = %v, want sold", items[0].Disposition)
	}

	// A freshness override clears the disposition again.
	if err := db.Pantry().SetStatus(ctx, user.ID, item.ID, model.Status(model.FreshnessFresh)); err != nil {
		t.Fatalf("SetStatus(fresh) error = %v", err)
	}
	items, _ = db.Pantry().ListByUser(ctx, user.ID)
	if items[0].Disposition != nil {
		t.Errorf("Disposition = %v, want cleared", *items[0].Disposition)
	}
}

func TestPantrySetStatus_OtherUsersItem(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	ctx := context.Background()
	item := newItem(owner.ID, "Ham", nil)
	if err := db.Pantry().Create(ctx, item); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := db.Pantry().SetStatus(ctx, other.ID, item.ID, model.Status(model.FreshnessFresh))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SetStatus() error = %v, want ErrNotFound", err)
	}
}

func TestPantryDelete_Idempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "delete@example.com")
	ctx := context.Background()
	item := newItem(user.ID, "Apples", nil)
	if err := db.Pantry().Create(ctx, item); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := db.Pantry().Delete(ctx, user.ID, item.ID); err != nil {
			t.Fatalf("Delete() #%d error = %v", i+1, err)
		}
	}
	items, _ := db.Pantry().ListByUser(ctx, user.ID)
	if len(items) != 0 {
		t.Errorf("len(items) = %d after delete, want 0", len(items))
	}
}
