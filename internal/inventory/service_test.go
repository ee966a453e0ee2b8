package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

type recordingIntegration struct {
	purchases []PurchaseEvent
	recorded  int
	changed   []StockItem
	failWith  error
}

func (r *recordingIntegration) HandleStockPurchased(_ context.Context, evt PurchaseEvent) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.purchases = append(r.purchases, evt)
	return nil
}

func (r *recordingIntegration) HandleMovementsRecorded(_ context.Context, movements []Movement) error {
	r.recorded += len(movements)
	return nil
}

func (r *recordingIntegration) HandleItemChanged(_ context.Context, item StockItem) error {
	r.changed = append(r.changed, item)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) (*Service, *MemoryRepository, *recordingIntegration) {
	t.Helper()
	repo := NewMemoryRepository()
	integration := &recordingIntegration{}
	svc := NewService(repo, nil, shared.NewMemoryIdempotencyStore(), integration, nil)
	return svc, repo, integration
}

func registerSugar(t *testing.T, svc *Service) StockItem {
	t.Helper()
	item, err := svc.RegisterItem(context.Background(), RegisterItemInput{
		Name:            "Sugar",
		Category:        "Dry goods",
		Unit:            "kg",
		InitialQuantity: dec("10"),
		MinThreshold:    dec("2"),
		Actor:           "store",
	})
	require.NoError(t, err)
	return item
}

func sumDeltas(t *testing.T, svc *Service, itemID uuid.UUID) decimal.Decimal {
	t.Helper()
	movements, err := svc.History(context.Background(), HistoryFilter{ItemID: itemID})
	require.NoError(t, err)
	total := decimal.Zero
	for _, mv := range movements {
		total = total.Add(mv.Delta)
	}
	return total
}

func TestRegisterItemRecordsOpeningReceipt(t *testing.T) {
	svc, _, _ := newTestService(t)
	item := registerSugar(t, svc)

	require.True(t, item.Quantity.Equal(dec("10")))
	require.True(t, item.TrackingEnabled)

	movements, err := svc.History(context.Background(), HistoryFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, MovementReceipt, movements[0].Kind)
	require.Equal(t, ReasonInitialRegistration, movements[0].Reason)
	require.True(t, movements[0].Before.IsZero())
	require.True(t, movements[0].After.Equal(dec("10")))
}

func TestRegisterItemValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterItem(ctx, RegisterItemInput{Name: " ", Category: "Dry", Unit: "kg"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RegisterItem(ctx, RegisterItemInput{Name: "Salt", Category: "Dry", Unit: "furlong"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RegisterItem(ctx, RegisterItemInput{Name: "Salt", Category: "Dry", Unit: "kg", InitialQuantity: dec("-1")})
	require.ErrorIs(t, err, shared.ErrValidation)

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestQuantityMatchesLedger(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	_, err := svc.Receive(ctx, ReceiveInput{ItemID: item.ID, Quantity: dec("4.5")})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, IssueInput{ItemID: item.ID, Quantity: dec("3"), Recipient: "Kitchen"})
	require.NoError(t, err)
	_, err = svc.Waste(ctx, WasteInput{ItemID: item.ID, Quantity: dec("0.5"), Reason: "damp"})
	require.NoError(t, err)
	qty := dec("7")
	_, err = svc.EditItem(ctx, item.ID, ItemPatch{Quantity: &qty}, "auditor")
	require.NoError(t, err)

	current, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("7")))
	require.True(t, current.Quantity.Equal(sumDeltas(t, svc, item.ID)))

	movements, err := svc.History(ctx, HistoryFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, movements, 5)
	last := movements[len(movements)-1]
	require.Equal(t, MovementAuditAdjustment, last.Kind)
	require.True(t, last.Delta.Equal(dec("-4")))
	require.True(t, movements[3].IsWaste())
	for i := 1; i < len(movements); i++ {
		require.True(t, movements[i].Before.Equal(movements[i-1].After))
	}
}

func TestLedgerIsAppendOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	before, err := svc.History(ctx, HistoryFilter{})
	require.NoError(t, err)
	snapshot := append([]Movement(nil), before...)

	_, err = svc.Issue(ctx, IssueInput{ItemID: item.ID, Quantity: dec("1"), Recipient: "Bar"})
	require.NoError(t, err)
	_, err = svc.Issue(ctx, IssueInput{ItemID: item.ID, Quantity: dec("100"), Recipient: "Bar"})
	require.Error(t, err)

	after, err := svc.History(ctx, HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, after, len(snapshot)+1)
	require.Equal(t, snapshot, after[:len(snapshot)])
}

func TestOutflowCannotDriveStockNegative(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	kinds := []MovementKind{MovementIssue, MovementWaste, MovementRequisitionFulfillment}
	for _, kind := range kinds {
		_, err := svc.Record(ctx, RecordInput{ItemID: item.ID, Kind: kind, Delta: dec("-10.01"), Reason: "too much"})
		require.ErrorIs(t, err, shared.ErrInsufficientStock, kind)

		var stockErr *shared.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		require.True(t, stockErr.Available.Equal(dec("10")))
		require.True(t, stockErr.Requested.Equal(dec("10.01")))
	}

	current, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("10")))
	movements, err := svc.History(ctx, HistoryFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)

	_, err = svc.Issue(ctx, IssueInput{ItemID: item.ID, Quantity: dec("10"), Recipient: "Kitchen"})
	require.NoError(t, err)
	current, err = svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.IsZero())
}

func TestRecordRejectsMalformedInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	cases := []RecordInput{
		{ItemID: item.ID, Kind: "TRANSFER", Delta: dec("1")},
		{ItemID: item.ID, Kind: MovementIssue, Delta: dec("1")},
		{ItemID: item.ID, Kind: MovementReceipt, Delta: dec("-1")},
		{ItemID: item.ID, Kind: MovementReceipt, Delta: decimal.Zero},
		{Kind: MovementReceipt, Delta: dec("1")},
	}
	for _, input := range cases {
		_, err := svc.Record(ctx, input)
		require.ErrorIs(t, err, shared.ErrValidation)
	}

	_, err := svc.Record(ctx, RecordInput{ItemID: uuid.New(), Kind: MovementReceipt, Delta: dec("1")})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestWasteReasonIsTagged(t *testing.T) {
	svc, _, _ := newTestService(t)
	item := registerSugar(t, svc)

	mv, err := svc.Waste(context.Background(), WasteInput{ItemID: item.ID, Quantity: dec("1"), Reason: "spilled"})
	require.NoError(t, err)
	require.Equal(t, "WASTE: spilled", mv.Reason)
	require.True(t, mv.IsWaste())
}

func TestReceivePostsCostedPurchase(t *testing.T) {
	svc, _, integration := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	mv, err := svc.Receive(ctx, ReceiveInput{ItemID: item.ID, Quantity: dec("5"), UnitCost: decimal.NewNullDecimal(dec("2000"))})
	require.NoError(t, err)
	require.True(t, mv.After.Equal(dec("15")))

	require.Len(t, integration.purchases, 1)
	evt := integration.purchases[0]
	require.Equal(t, "Sugar", evt.ItemName)
	require.Equal(t, "kg", evt.Unit)
	require.True(t, evt.Quantity.Mul(evt.UnitCost).Equal(dec("10000")))

	_, err = svc.Receive(ctx, ReceiveInput{ItemID: item.ID, Quantity: dec("1")})
	require.NoError(t, err)
	require.Len(t, integration.purchases, 1)
	require.Equal(t, 3, integration.recorded)
}

func TestReceiveWithReferenceIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	input := ReceiveInput{ItemID: item.ID, Quantity: dec("2"), Reference: "GRN-7"}
	_, err := svc.Receive(ctx, input)
	require.NoError(t, err)
	_, err = svc.Receive(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	current, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("12")))
}

func TestReceiveReleasesReferenceOnFailure(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ItemID: uuid.New(), Quantity: dec("2"), Reference: "GRN-8"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	item := registerSugar(t, svc)
	_, err = svc.Receive(ctx, ReceiveInput{ItemID: item.ID, Quantity: dec("2"), Reference: "GRN-8"})
	require.NoError(t, err)
}

func TestRecordBatchPolicies(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	sugar := registerSugar(t, svc)
	rice, err := svc.RegisterItem(ctx, RegisterItemInput{Name: "Rice", Category: "Dry goods", Unit: "kg", InitialQuantity: dec("1")})
	require.NoError(t, err)

	inputs := []RecordInput{
		{ItemID: sugar.ID, Kind: MovementRequisitionFulfillment, Delta: dec("-4")},
		{ItemID: rice.ID, Kind: MovementRequisitionFulfillment, Delta: dec("-3")},
	}

	_, err = svc.RecordBatch(ctx, inputs, BatchOptions{})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	current, err := svc.GetItem(ctx, sugar.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("10")))

	results, err := svc.RecordBatch(ctx, inputs, BatchOptions{SkipInsufficient: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Movement)
	require.Nil(t, results[1].Movement)
	require.ErrorIs(t, results[1].Err, shared.ErrInsufficientStock)

	current, err = svc.GetItem(ctx, sugar.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("6")))
	current, err = svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("1")))
}

func TestListItemsAndLowStock(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	registerSugar(t, svc)
	off := false
	for _, in := range []RegisterItemInput{
		{Name: "apples", Category: "Fruit", Unit: "pcs", InitialQuantity: dec("3"), MinThreshold: dec("5")},
		{Name: "Bread", Category: "Bakery", Unit: "pcs", InitialQuantity: dec("0"), MinThreshold: dec("1"), TrackingEnabled: &off},
	} {
		_, err := svc.RegisterItem(ctx, in)
		require.NoError(t, err)
	}

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, []string{"apples", "Bread", "Sugar"}, []string{items[0].Name, items[1].Name, items[2].Name})

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "apples", low[0].Name)
}

func TestEditItemWithoutQuantityChangeWritesNoMovement(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	name := "Cane sugar"
	edited, err := svc.EditItem(ctx, item.ID, ItemPatch{Name: &name}, "store")
	require.NoError(t, err)
	require.Equal(t, "Cane sugar", edited.Name)

	movements, err := svc.History(ctx, HistoryFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, movements, 1)

	negative := dec("-1")
	_, err = svc.EditItem(ctx, item.ID, ItemPatch{Quantity: &negative}, "store")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestEditItemAnnouncesDetailChanges(t *testing.T) {
	svc, _, integration := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	off := false
	_, err := svc.EditItem(ctx, item.ID, ItemPatch{TrackingEnabled: &off}, "store")
	require.NoError(t, err)
	require.Len(t, integration.changed, 1)
	require.False(t, integration.changed[0].TrackingEnabled)

	same := "Sugar"
	_, err = svc.EditItem(ctx, item.ID, ItemPatch{Name: &same}, "store")
	require.NoError(t, err)
	require.Len(t, integration.changed, 1)

	qty := dec("4")
	_, err = svc.EditItem(ctx, item.ID, ItemPatch{Quantity: &qty}, "store")
	require.NoError(t, err)
	require.Len(t, integration.changed, 1)
	require.Equal(t, 2, integration.recorded)
}

func TestReceiveReversedWhenCashPostingFails(t *testing.T) {
	svc, _, integration := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	integration.failWith = errors.New("cash ledger offline")
	input := ReceiveInput{ItemID: item.ID, Quantity: dec("5"), UnitCost: decimal.NewNullDecimal(dec("2000")), Reference: "GRN-9"}
	mv, err := svc.Receive(ctx, input)
	require.ErrorContains(t, err, "cash ledger offline")
	require.Equal(t, uuid.Nil, mv.ID)

	current, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("10")))
	require.True(t, sumDeltas(t, svc, item.ID).Equal(current.Quantity))

	movements, err := svc.History(ctx, HistoryFilter{ItemID: item.ID})
	require.NoError(t, err)
	require.Len(t, movements, 3)
	require.Equal(t, ReasonReceiptReversed, movements[2].Reason)
	require.True(t, movements[2].Delta.Equal(dec("-5")))

	integration.failWith = nil
	_, err = svc.Receive(ctx, input)
	require.NoError(t, err)
	require.Len(t, integration.purchases, 1)
	current, err = svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("15")))
}

func TestRecordBatchWithKeyCommitsOnce(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	item := registerSugar(t, svc)

	inputs := []RecordInput{{ItemID: item.ID, Kind: MovementRequisitionFulfillment, Delta: dec("-3")}}
	opts := BatchOptions{IdempotencyKey: "REQUISITION:42"}
	_, err := svc.RecordBatch(ctx, inputs, opts)
	require.NoError(t, err)
	_, err = svc.RecordBatch(ctx, inputs, opts)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	current, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, current.Quantity.Equal(dec("7")))

	tooMuch := []RecordInput{{ItemID: item.ID, Kind: MovementRequisitionFulfillment, Delta: dec("-30")}}
	_, err = svc.RecordBatch(ctx, tooMuch, BatchOptions{IdempotencyKey: "REQUISITION:43"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	_, err = svc.RecordBatch(ctx, inputs, BatchOptions{IdempotencyKey: "REQUISITION:43"})
	require.NoError(t, err)
}
