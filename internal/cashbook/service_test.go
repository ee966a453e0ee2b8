package cashbook

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/storeledger/internal/shared"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 9, 0, 0, 0, time.UTC)
}

func TestLedgerRunningBalance(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()

	// Posted out of order; the ledger sorts by date.
	_, err := svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("50"), Remark: "tips", Date: day(3)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("100"), Remark: "float", Date: day(1)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, PostInput{Direction: DirectionOut, Amount: amount("30"), Remark: "gas", Date: day(2)})
	require.NoError(t, err)

	lines, err := svc.LedgerWithRunningBalance(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	want := []string{"100", "70", "120"}
	for i, line := range lines {
		assert.True(t, line.Balance.Equal(amount(want[i])), "line %d balance %s", i, line.Balance)
	}
}

func TestLedgerTiesKeepPostingOrder(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()
	for _, remark := range []string{"first", "second", "third"} {
		_, err := svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("1"), Remark: remark, Date: day(5)})
		require.NoError(t, err)
	}
	lines, err := svc.LedgerWithRunningBalance(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, []string{lines[0].Remark, lines[1].Remark, lines[2].Remark})
}

func TestLedgerWindowFoldsOpeningBalance(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()
	_, err := svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("100"), Remark: "float", Date: day(1)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, PostInput{Direction: DirectionOut, Amount: amount("30"), Remark: "gas", Date: day(2)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("50"), Remark: "tips", Date: day(3)})
	require.NoError(t, err)

	filter := LedgerFilter{From: day(2), To: day(2).Add(time.Hour)}
	lines, err := svc.LedgerWithRunningBalance(ctx, filter)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.True(t, lines[0].Balance.Equal(amount("70")))

	sum, err := svc.Summary(ctx, filter)
	require.NoError(t, err)
	assert.True(t, sum.Opening.Equal(amount("100")))
	assert.True(t, sum.TotalIn.IsZero())
	assert.True(t, sum.TotalOut.Equal(amount("30")))
	assert.True(t, sum.Closing.Equal(amount("70")))
	assert.Equal(t, 1, sum.Entries)

	_, err = svc.Summary(ctx, LedgerFilter{From: day(3), To: day(1)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()

	cases := []PostInput{
		{Direction: DirectionIn, Amount: decimal.Zero, Remark: "x"},
		{Direction: DirectionIn, Amount: amount("-5"), Remark: "x"},
		{Direction: DirectionOut, Amount: amount("5"), Remark: "  "},
		{Direction: "SIDEWAYS", Amount: amount("5"), Remark: "x"},
		{Direction: DirectionIn, Amount: amount("5"), Remark: "x", Mode: "CHEQUE"},
	}
	for _, input := range cases {
		_, err := svc.Post(ctx, input)
		require.ErrorIs(t, err, shared.ErrValidation)
	}
	lines, err := svc.LedgerWithRunningBalance(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestPostAutomaticPurchase(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	entry, err := svc.PostAutomaticPurchase(context.Background(), "Sugar", amount("5"), "kg", amount("2000"))
	require.NoError(t, err)

	assert.Equal(t, "Purchased: Sugar (5kg)", entry.Remark)
	assert.Equal(t, PurchaseCategory, entry.Category)
	assert.Equal(t, ModeCash, entry.Mode)
	assert.True(t, entry.AmountOut.Equal(amount("10000")))
	assert.True(t, entry.AmountIn.IsZero())
}

func TestSubCentAmountsAreRejected(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()

	_, err := svc.Post(ctx, PostInput{Direction: DirectionOut, Amount: amount("0.004"), Remark: "rounding"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.PostAutomaticPurchase(ctx, "Saffron", amount("0.001"), "g", amount("3"))
	require.ErrorIs(t, err, shared.ErrValidation)

	lines, err := svc.LedgerWithRunningBalance(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Empty(t, lines)

	entry, err := svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("0.005"), Remark: "rounding"})
	require.NoError(t, err)
	assert.True(t, entry.AmountIn.Equal(amount("0.01")))
}

func TestLedgerIsAppendOnly(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("10"), Remark: "a", Date: day(1)})
	require.NoError(t, err)
	_, err = svc.Post(ctx, PostInput{Direction: DirectionOut, Amount: amount("0"), Remark: "b"})
	require.Error(t, err)
	_, err = svc.Post(ctx, PostInput{Direction: DirectionOut, Amount: amount("4"), Remark: "c", Date: day(2)})
	require.NoError(t, err)

	entries, err := repo.ListUntil(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, first, entries[0])
}

func TestExportXLSX(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, nil)
	ctx := context.Background()
	_, err := svc.Post(ctx, PostInput{Direction: DirectionIn, Amount: amount("100"), Remark: "float", Date: day(1)})
	require.NoError(t, err)
	lines, err := svc.LedgerWithRunningBalance(ctx, LedgerFilter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportXLSX(&buf, lines))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	header, err := f.GetCellValue("Cash Ledger", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Remark", header)
	remark, err := f.GetCellValue("Cash Ledger", "B2")
	require.NoError(t, err)
	assert.Equal(t, "float", remark)
	balance, err := f.GetCellValue("Cash Ledger", "G2")
	require.NoError(t, err)
	assert.Equal(t, "100", balance)
}
