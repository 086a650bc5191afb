package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
)

type dispositionFixture struct {
	store     *DispositionStore
	pantry    *PantryStore
	pantryDB  *fakePantryRepo
	donations *fakeDonationRepo
	sales     *fakeSaleRepo
	notices   *Notices
}

func newTestDisposition(t *testing.T, userID string) *dispositionFixture {
	t.Helper()
	f := &dispositionFixture{
		pantryDB:  &fakePantryRepo{},
		donations: &fakeDonationRepo{},
		sales:     &fakeSaleRepo{},
		notices:   &Notices{},
	}
	f.pantry = NewPantryStore(f.pantryDB, userID, f.notices, discardLogger())
	f.pantry.now = fixedNow
	f.store = NewDispositionStore(f.donations, f.sales, f.pantry, userID, f.notices, discardLogger())
	return f
}

func (f *dispositionFixture) addItem(t *testing.T, name string) *model.PantryItem {
	t.Helper()
	it, err := f.pantry.Add(context.Background(), NewPantryItem{Name: name, Quantity: qty(1), ExpiryDate: dayOffset(2)})
	require.NoError(t, err)
	return it
}

func TestCreateDonation_MarksItemDonated(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	ctx := context.Background()
	item := f.addItem(t, "Bread")

	res, err := f.store.CreateDonation(ctx, NewDonation{ItemID: item.ID, ItemName: "Bread", Organization: "Food Bank"})
	require.NoError(t, err)
	assert.True(t, res.StatusSynced)
	assert.Equal(t, model.DonationCompleted, res.Record.Status)
	require.NotNil(t, res.Record.ItemID)
	assert.Equal(t, item.ID, *res.Record.ItemID)

	got, _ := f.pantry.Find(item.ID)
	assert.Equal(t, model.Status(model.DispositionDonated), got.Status())
	assert.Equal(t, model.Status(model.DispositionDonated), f.pantryDB.items[0].Status())
	assert.Equal(t, "Bread", f.store.Donations()[0].ItemName)
	assert.Contains(t, f.notices.All(), Notice{Level: LevelSuccess, Message: "Item donated successfully!"})
}

func TestCreateDonation_RecordSurvivesStatusFailure(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	ctx := context.Background()
	item := f.addItem(t, "Soup")
	f.pantryDB.statusErr = errBackend

	res, err := f.store.CreateDonation(ctx, NewDonation{ItemID: item.ID, ItemName: "Soup", Organization: "Shelter"})
	require.NoError(t, err)
	assert.False(t, res.StatusSynced)
	assert.Len(t, f.donations.recs, 1, "donation record must persist")
	assert.Len(t, f.store.Donations(), 1)

	got, _ := f.pantry.Find(item.ID)
	assert.True(t, got.Active(), "pantry item keeps its old status")
}

func TestCreateDonation_PrimaryFailureHasNoSideEffect(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	ctx := context.Background()
	item := f.addItem(t, "Rice")
	f.donations.createErr = errBackend

	_, err := f.store.CreateDonation(ctx, NewDonation{ItemID: item.ID, ItemName: "Rice", Organization: "Shelter"})
	assert.ErrorIs(t, err, errBackend)

	got, _ := f.pantry.Find(item.ID)
	assert.True(t, got.Active())
	assert.Empty(t, f.store.Donations())
	assert.Contains(t, f.notices.All(), Notice{Level: LevelError, Message: "Failed to record donation"})
}

func TestCreateDonation_Validation(t *testing.T) {
	f := newTestDisposition(t, "user-1")

	_, err := f.store.CreateDonation(context.Background(), NewDonation{ItemName: "Rice"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Empty(t, f.donations.recs)
}

func TestCreateDonation_WithoutItem(t *testing.T) {
	f := newTestDisposition(t, "user-1")

	res, err := f.store.CreateDonation(context.Background(), NewDonation{ItemName: "Cake", Organization: "Church"})
	require.NoError(t, err)
	assert.Nil(t, res.Record.ItemID)
	assert.True(t, res.StatusSynced)
}

func TestCreateSale_MarksItemSold(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	ctx := context.Background()
	item := f.addItem(t, "Jam")

	res, err := f.store.CreateSale(ctx, NewSale{
		ItemID: item.ID, ItemName: "Jam", Price: decimal.RequireFromString("3.499"), Platform: "Marketplace",
	})
	require.NoError(t, err)
	assert.True(t, res.StatusSynced)
	assert.Equal(t, model.SaleSold, res.Record.Status)
	assert.Equal(t, "3.50", res.Record.Price.StringFixed(2))

	got, _ := f.pantry.Find(item.ID)
	assert.Equal(t, model.Status(model.DispositionSold), got.Status())
}

func TestCreateSale_NegativePrice(t *testing.T) {
	f := newTestDisposition(t, "user-1")

	_, err := f.store.CreateSale(context.Background(), NewSale{ItemName: "Jam", Price: decimal.NewFromInt(-1), Platform: "X"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCreateSale_RecordSurvivesStatusFailure(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	item := f.addItem(t, "Pie")
	f.pantryDB.statusErr = errBackend

	res, err := f.store.CreateSale(context.Background(), NewSale{ItemID: item.ID, ItemName: "Pie", Price: decimal.NewFromInt(4), Platform: "Local"})
	require.NoError(t, err)
	assert.False(t, res.StatusSynced)
	assert.Len(t, f.sales.recs, 1)
}

func TestDispositionList(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	ctx := context.Background()
	_, err := f.store.CreateDonation(ctx, NewDonation{ItemName: "A", Organization: "Org"})
	require.NoError(t, err)
	_, err = f.store.CreateDonation(ctx, NewDonation{ItemName: "B", Organization: "Org"})
	require.NoError(t, err)
	_, err = f.store.CreateSale(ctx, NewSale{ItemName: "C", Price: decimal.NewFromInt(2), Platform: "P"})
	require.NoError(t, err)

	fresh := NewDispositionStore(f.donations, f.sales, f.pantry, "user-1", nil, discardLogger())
	donations, sales, err := fresh.List(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 2)
	assert.Equal(t, "B", donations[0].ItemName, "newest first")
	assert.Len(t, sales, 1)
}

func TestDispositionList_EitherFailureFailsAll(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	f.sales.listErr = errBackend

	_, _, err := f.store.List(context.Background())
	assert.ErrorIs(t, err, errBackend)
	assert.Contains(t, f.notices.All(), Notice{Level: LevelError, Message: "Failed to load donation/sale records"})
}

func TestAdvanceDonationAndSale(t *testing.T) {
	f := newTestDisposition(t, "user-1")
	ctx := context.Background()
	d, err := f.store.CreateDonation(ctx, NewDonation{ItemName: "A", Organization: "Org"})
	require.NoError(t, err)
	s, err := f.store.CreateSale(ctx, NewSale{ItemName: "B", Price: decimal.NewFromInt(1), Platform: "P"})
	require.NoError(t, err)

	require.NoError(t, f.store.AdvanceDonation(ctx, d.Record.ID, model.DonationPending))
	require.NoError(t, f.store.AdvanceSale(ctx, s.Record.ID, model.SaleCancelled))
	assert.Equal(t, model.DonationPending, f.store.Donations()[0].Status)
	assert.Equal(t, model.SaleCancelled, f.store.Sales()[0].Status)
	assert.True(t, f.store.SalesTotal().IsZero(), "cancelled sales do not count")

	assert.ErrorIs(t, f.store.AdvanceSale(ctx, s.Record.ID, "refunded"), apperror.ErrValidation)
	assert.ErrorIs(t, f.store.AdvanceDonation(ctx, "missing", model.DonationCompleted), apperror.ErrNotFound)
}

func TestDisposition_NoUser(t *testing.T) {
	f := newTestDisposition(t, "")
	ctx := context.Background()

	_, _, err := f.store.List(ctx)
	assert.ErrorIs(t, err, apperror.ErrPrecondition)
	_, err = f.store.CreateDonation(ctx, NewDonation{ItemName: "A", Organization: "O"})
	assert.ErrorIs(t, err, apperror.ErrPrecondition)
	assert.Empty(t, f.notices.All())
}
