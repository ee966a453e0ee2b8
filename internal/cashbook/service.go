package cashbook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeledger/internal/platform/export"
	"github.com/odyssey-erp/storeledger/internal/shared"
)

// RepositoryPort abstracts cash ledger storage.
type RepositoryPort interface {
	// Append stores entry and returns it with its sequence assigned.
	Append(ctx context.Context, entry Entry) (Entry, error)
	// ListUntil returns entries dated at or before to (all when zero).
	ListUntil(ctx context.Context, to time.Time) ([]Entry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the cash ledger.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a cash ledger service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Post appends a manual entry.
func (s *Service) Post(ctx context.Context, input PostInput) (Entry, error) {
	if input.Direction != DirectionIn && input.Direction != DirectionOut {
		return Entry{}, shared.NewValidationError("direction", "must be IN or OUT")
	}
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return Entry{}, shared.NewValidationError("amount", "must be at least 0.01")
	}
	remark := strings.TrimSpace(input.Remark)
	if remark == "" {
		return Entry{}, shared.NewValidationError("remark", "is required")
	}
	mode := input.Mode
	if mode == "" {
		mode = ModeCash
	}
	if !mode.Valid() {
		return Entry{}, shared.NewValidationError("mode", fmt.Sprintf("%q is not a payment mode", mode))
	}
	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}
	entry := Entry{
		ID:        uuid.New(),
		Date:      date.UTC(),
		Remark:    remark,
		Category:  strings.TrimSpace(input.Category),
		Mode:      mode,
		AmountIn:  decimal.Zero,
		AmountOut: decimal.Zero,
		CreatedAt: now,
	}
	if input.Direction == DirectionIn {
		entry.AmountIn = amount
	} else {
		entry.AmountOut = amount
	}
	saved, err := s.repo.Append(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    shared.ActorFromContext(ctx),
			Action:   "cash:" + string(input.Direction),
			Entity:   "cash_entry",
			EntityID: saved.ID.String(),
			Meta:     map[string]any{"amount": amount.String(), "remark": remark},
		}); err != nil {
			s.logger.Warn("audit record", slog.Any("error", err))
		}
	}
	return saved, nil
}

// PostAutomaticPurchase records the cash paid for a stock receipt. The mode is always CASH.
// A total under one cent is rejected like any other non-positive amount.
func (s *Service) PostAutomaticPurchase(ctx context.Context, itemName string, qty decimal.Decimal, unit string, unitCost decimal.Decimal) (Entry, error) {
	return s.Post(ctx, PostInput{
		Direction: DirectionOut,
		Amount:    qty.Mul(unitCost),
		Remark:    fmt.Sprintf("Purchased: %s (%s%s)", itemName, qty.String(), unit),
		Category:  PurchaseCategory,
		Mode:      ModeCash,
	})
}

// LedgerWithRunningBalance lists entries in the window oldest first with the balance after each.
// Entries before filter.From count toward the opening balance.
func (s *Service) LedgerWithRunningBalance(ctx context.Context, filter LedgerFilter) ([]LedgerLine, error) {
	opening, entries, err := s.window(ctx, filter)
	if err != nil {
		return nil, err
	}
	lines := make([]LedgerLine, 0, len(entries))
	balance := opening
	for _, e := range entries {
		balance = balance.Add(e.Net())
		lines = append(lines, LedgerLine{Entry: e, Balance: balance})
	}
	return lines, nil
}

// Summary totals the window.
func (s *Service) Summary(ctx context.Context, filter LedgerFilter) (Summary, error) {
	opening, entries, err := s.window(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Opening: opening, TotalIn: decimal.Zero, TotalOut: decimal.Zero, Entries: len(entries)}
	for _, e := range entries {
		sum.TotalIn = sum.TotalIn.Add(e.AmountIn)
		sum.TotalOut = sum.TotalOut.Add(e.AmountOut)
	}
	sum.Closing = opening.Add(sum.TotalIn).Sub(sum.TotalOut)
	return sum, nil
}

// ExportXLSX writes the ledger lines as a spreadsheet.
func ExportXLSX(w io.Writer, lines []LedgerLine) error {
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{
			l.Date.Format("2006-01-02 15:04"),
			l.Remark,
			l.Category,
			string(l.Mode),
			l.AmountIn.InexactFloat64(),
			l.AmountOut.InexactFloat64(),
			l.Balance.InexactFloat64(),
		})
	}
	return export.WriteXLSX(w, "Cash Ledger", []string{"Date", "Remark", "Category", "Mode", "In", "Out", "Balance"}, rows)
}

func (s *Service) window(ctx context.Context, filter LedgerFilter) (decimal.Decimal, []Entry, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return decimal.Zero, nil, shared.NewValidationError("to", "must not be before from")
	}
	all, err := s.repo.ListUntil(ctx, filter.To)
	if err != nil {
		return decimal.Zero, nil, err
	}
	sortEntries(all)
	opening := decimal.Zero
	entries := make([]Entry, 0, len(all))
	for _, e := range all {
		if !filter.From.IsZero() && e.Date.Before(filter.From) {
			opening = opening.Add(e.Net())
			continue
		}
		entries = append(entries, e)
	}
	return opening, entries, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].Seq < entries[j].Seq
	})
}
