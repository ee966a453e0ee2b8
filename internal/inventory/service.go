package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/storeledger/internal/shared"
	"github.com/odyssey-erp/storeledger/internal/units"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id uuid.UUID) (StockItem, error)
	ListItems(ctx context.Context) ([]StockItem, error)
	ListMovements(ctx context.Context, filter HistoryFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed receipts.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates the stock item store and the movement ledger.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	integration IntegrationHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. audit, idem and integration may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, integration IntegrationHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		integration: integration,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RegisterItem creates a stock item and its opening receipt.
func (s *Service) RegisterItem(ctx context.Context, input RegisterItemInput) (StockItem, error) {
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	if name == "" {
		return StockItem{}, shared.NewValidationError("name", "is required")
	}
	if category == "" {
		return StockItem{}, shared.NewValidationError("category", "is required")
	}
	if err := units.Validate(input.Unit); err != nil {
		return StockItem{}, err
	}
	if input.InitialQuantity.IsNegative() {
		return StockItem{}, shared.NewValidationError("initial_quantity", "must be >= 0")
	}
	if input.MinThreshold.IsNegative() {
		return StockItem{}, shared.NewValidationError("min_threshold", "must be >= 0")
	}
	if input.UnitCost.Valid && input.UnitCost.Decimal.IsNegative() {
		return StockItem{}, shared.NewValidationError("unit_cost", "must be >= 0")
	}
	tracking := true
	if input.TrackingEnabled != nil {
		tracking = *input.TrackingEnabled
	}
	now := s.now()
	item := StockItem{
		ID:              uuid.New(),
		Name:            name,
		Category:        category,
		Unit:            units.Normalize(input.Unit),
		Quantity:        decimal.Zero,
		MinThreshold:    input.MinThreshold,
		UnitCost:        input.UnitCost,
		TrackingEnabled: tracking,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	var opening Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		var err error
		item, opening, err = applyMovement(ctx, tx, item, movementParams{
			Kind:     MovementReceipt,
			Delta:    input.InitialQuantity,
			Reason:   ReasonInitialRegistration,
			Actor:    input.Actor,
			UnitCost: input.UnitCost,
		}, now)
		return err
	})
	if err != nil {
		return StockItem{}, err
	}
	s.afterMovements(ctx, []Movement{opening})
	s.recordAudit(ctx, input.Actor, "inventory:REGISTER", item.ID, map[string]any{
		"name":     item.Name,
		"unit":     item.Unit,
		"quantity": item.Quantity.String(),
	})
	return item, nil
}

// EditItem applies patch to an item. A quantity change is recorded as an AUDIT_ADJUSTMENT.
func (s *Service) EditItem(ctx context.Context, id uuid.UUID, patch ItemPatch, actor string) (StockItem, error) {
	if err := validatePatch(patch); err != nil {
		return StockItem{}, err
	}
	now := s.now()
	var (
		item     StockItem
		adjusted []Movement
		changed  bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		item = applyPatch(current, patch)
		item.UpdatedAt = now
		changed = detailsChanged(current, item)
		if patch.Quantity == nil || patch.Quantity.Equal(current.Quantity) {
			return tx.UpdateItem(ctx, item)
		}
		var mv Movement
		item, mv, err = applyMovement(ctx, tx, item, movementParams{
			Kind:   MovementAuditAdjustment,
			Delta:  patch.Quantity.Sub(current.Quantity),
			Reason: ReasonManualEdit,
			Actor:  actor,
		}, now)
		if err != nil {
			return err
		}
		adjusted = append(adjusted, mv)
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	s.afterMovements(ctx, adjusted)
	if changed && s.integration != nil {
		if err := s.integration.HandleItemChanged(ctx, item); err != nil {
			s.logger.Warn("item change integration", slog.Any("error", err), slog.String("item_id", item.ID.String()))
		}
	}
	s.recordAudit(ctx, actor, "inventory:EDIT", item.ID, map[string]any{"adjusted": len(adjusted) > 0})
	return item, nil
}

// GetItem returns a single item.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (StockItem, error) {
	if id == uuid.Nil {
		return StockItem{}, shared.NewValidationError("item_id", "is required")
	}
	return s.repo.GetItem(ctx, id)
}

// ListItems returns all items ordered by display name.
func (s *Service) ListItems(ctx context.Context) ([]StockItem, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return col.CompareString(items[i].Name, items[j].Name) < 0
	})
	return items, nil
}

// LowStock lists tracked items at or below their minimum threshold.
func (s *Service) LowStock(ctx context.Context) ([]StockItem, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]StockItem, 0)
	for _, item := range items {
		if item.IsLow() {
			low = append(low, item)
		}
	}
	return low, nil
}

// Record appends a movement and updates the item projection atomically.
func (s *Service) Record(ctx context.Context, input RecordInput) (Movement, error) {
	if err := validateRecord(input); err != nil {
		return Movement{}, err
	}
	now := s.now()
	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		_, mv, err = applyMovement(ctx, tx, item, paramsFromInput(input), now)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterMovements(ctx, []Movement{mv})
	s.recordAudit(ctx, input.Actor, fmt.Sprintf("inventory:%s", input.Kind), input.ItemID, map[string]any{
		"delta":  input.Delta.String(),
		"reason": mv.Reason,
	})
	return mv, nil
}

// RecordBatch applies several movements in one transaction. Without SkipInsufficient the
// batch is all-or-nothing; with it, inputs lacking stock are reported in their result and skipped.
func (s *Service) RecordBatch(ctx context.Context, inputs []RecordInput, opts BatchOptions) ([]BatchResult, error) {
	for i, input := range inputs {
		if err := validateRecord(input); err != nil {
			return nil, fmt.Errorf("inventory: batch input %d: %w", i, err)
		}
	}
	key := opts.IdempotencyKey
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory.batch"); err != nil {
			return nil, err
		}
	}
	now := s.now()
	var results []BatchResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		results = make([]BatchResult, len(inputs))
		for i, input := range inputs {
			item, err := tx.GetItemForUpdate(ctx, input.ItemID)
			if err == nil {
				var mv Movement
				_, mv, err = applyMovement(ctx, tx, item, paramsFromInput(input), now)
				if err == nil {
					results[i].Movement = &mv
					continue
				}
			}
			if opts.SkipInsufficient && (errors.Is(err, shared.ErrInsufficientStock) || errors.Is(err, shared.ErrNotFound)) {
				results[i].Err = err
				continue
			}
			return err
		}
		return nil
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			if derr := s.idempotency.Delete(ctx, key); derr != nil {
				s.logger.Warn("release batch key", slog.Any("error", derr), slog.String("key", key))
			}
		}
		return nil, err
	}
	recorded := make([]Movement, 0, len(results))
	for _, res := range results {
		if res.Movement != nil {
			recorded = append(recorded, *res.Movement)
		}
	}
	s.afterMovements(ctx, recorded)
	return results, nil
}

// Receive records a delivery. A positive unit cost also posts the purchase to the cash ledger;
// when that posting fails the receipt is reversed and its reference released for a retry.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Movement, error) {
	if !input.Quantity.IsPositive() {
		return Movement{}, shared.NewValidationError("quantity", "must be > 0")
	}
	if input.UnitCost.Valid && input.UnitCost.Decimal.IsNegative() {
		return Movement{}, shared.NewValidationError("unit_cost", "must be >= 0")
	}
	costed := s.integration != nil && input.UnitCost.Valid && input.UnitCost.Decimal.IsPositive()
	var item StockItem
	if costed {
		var err error
		if item, err = s.repo.GetItem(ctx, input.ItemID); err != nil {
			return Movement{}, err
		}
	}
	key := ""
	if input.Reference != "" && s.idempotency != nil {
		key = fmt.Sprintf("RECEIPT:%s:%s", input.ItemID, input.Reference)
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory.receipt"); err != nil {
			return Movement{}, err
		}
	}
	release := func() {
		if key == "" {
			return
		}
		if err := s.idempotency.Delete(ctx, key); err != nil {
			s.logger.Warn("release receipt reference", slog.Any("error", err), slog.String("key", key))
		}
	}
	reason := input.Reason
	if reason == "" {
		reason = "stock receipt"
	}
	mv, err := s.Record(ctx, RecordInput{
		ItemID:   input.ItemID,
		Kind:     MovementReceipt,
		Delta:    input.Quantity,
		Reason:   reason,
		Actor:    input.Actor,
		UnitCost: input.UnitCost,
	})
	if err != nil {
		release()
		return Movement{}, err
	}
	if !costed {
		return mv, nil
	}
	evt := PurchaseEvent{
		ItemID:     item.ID,
		ItemName:   item.Name,
		Unit:       item.Unit,
		Quantity:   input.Quantity,
		UnitCost:   input.UnitCost.Decimal,
		ReceivedAt: mv.RecordedAt,
	}
	if err := s.integration.HandleStockPurchased(ctx, evt); err != nil {
		s.logger.Error("post purchase to cash ledger", slog.Any("error", err), slog.String("movement_id", mv.ID.String()))
		if rerr := s.reverseReceipt(ctx, mv); rerr != nil {
			// The stock stays received, so the reference is kept to block a double receipt.
			s.logger.Error("reverse receipt", slog.Any("error", rerr), slog.String("movement_id", mv.ID.String()))
			return Movement{}, fmt.Errorf("inventory: cash posting failed and receipt %s was not reversed: %w", mv.ID, errors.Join(err, rerr))
		}
		release()
		return Movement{}, fmt.Errorf("inventory: receipt reversed after cash posting failed: %w", err)
	}
	return mv, nil
}

// reverseReceipt appends a negative RECEIPT cancelling mv.
func (s *Service) reverseReceipt(ctx context.Context, mv Movement) error {
	var reversal Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, mv.ItemID)
		if err != nil {
			return err
		}
		_, reversal, err = applyMovement(ctx, tx, item, movementParams{
			Kind:   MovementReceipt,
			Delta:  mv.Delta.Neg(),
			Reason: ReasonReceiptReversed,
			Actor:  mv.Actor,
		}, s.now())
		return err
	})
	if err != nil {
		return err
	}
	s.afterMovements(ctx, []Movement{reversal})
	s.recordAudit(ctx, mv.Actor, "inventory:RECEIPT_REVERSED", mv.ItemID, map[string]any{
		"movement_id": mv.ID.String(),
		"delta":       reversal.Delta.String(),
	})
	return nil
}

// Issue hands stock out to a department or person.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Movement, error) {
	if !input.Quantity.IsPositive() {
		return Movement{}, shared.NewValidationError("quantity", "must be > 0")
	}
	return s.Record(ctx, RecordInput{
		ItemID:      input.ItemID,
		Kind:        MovementIssue,
		Delta:       input.Quantity.Neg(),
		Reason:      input.Reason,
		Actor:       input.Actor,
		Recipient:   input.Recipient,
		Destination: input.Destination,
	})
}

// Waste writes off spoiled stock; the reason is tagged with WasteReasonPrefix.
func (s *Service) Waste(ctx context.Context, input WasteInput) (Movement, error) {
	if !input.Quantity.IsPositive() {
		return Movement{}, shared.NewValidationError("quantity", "must be > 0")
	}
	return s.Record(ctx, RecordInput{
		ItemID: input.ItemID,
		Kind:   MovementWaste,
		Delta:  input.Quantity.Neg(),
		Reason: input.Reason,
		Actor:  input.Actor,
	})
}

// History lists movements in chronological order.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]Movement, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.NewValidationError("to", "must not be before from")
	}
	return s.repo.ListMovements(ctx, filter)
}

type movementParams struct {
	Kind        MovementKind
	Delta       decimal.Decimal
	Reason      string
	Actor       string
	UnitCost    decimal.NullDecimal
	Recipient   string
	Destination string
}

func paramsFromInput(input RecordInput) movementParams {
	return movementParams{
		Kind:        input.Kind,
		Delta:       input.Delta,
		Reason:      input.Reason,
		Actor:       input.Actor,
		UnitCost:    input.UnitCost,
		Recipient:   input.Recipient,
		Destination: input.Destination,
	}
}

// applyMovement is the single place where the quantity projection changes.
func applyMovement(ctx context.Context, tx TxRepository, item StockItem, params movementParams, now time.Time) (StockItem, Movement, error) {
	before := item.Quantity
	after := before.Add(params.Delta)
	if after.IsNegative() {
		return item, Movement{}, &shared.InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: before,
			Requested: params.Delta.Abs(),
		}
	}
	reason := strings.TrimSpace(params.Reason)
	if params.Kind == MovementWaste && !strings.HasPrefix(reason, WasteReasonPrefix) {
		reason = strings.TrimSpace(WasteReasonPrefix + " " + reason)
	}
	actor := params.Actor
	if actor == "" {
		actor = "system"
	}
	mv := Movement{
		ID:          uuid.New(),
		ItemID:      item.ID,
		Kind:        params.Kind,
		Delta:       params.Delta,
		Before:      before,
		After:       after,
		UnitCost:    params.UnitCost,
		Reason:      reason,
		Actor:       actor,
		Recipient:   params.Recipient,
		Destination: params.Destination,
		RecordedAt:  now,
	}
	item.Quantity = after
	item.UpdatedAt = now
	if err := tx.UpdateItem(ctx, item); err != nil {
		return item, Movement{}, err
	}
	if err := tx.InsertMovement(ctx, mv); err != nil {
		return item, Movement{}, err
	}
	return item, mv, nil
}

func validateRecord(input RecordInput) error {
	if input.ItemID == uuid.Nil {
		return shared.NewValidationError("item_id", "is required")
	}
	if !input.Kind.Valid() {
		return shared.NewValidationError("kind", fmt.Sprintf("%q is not a movement kind", input.Kind))
	}
	if input.Delta.IsZero() {
		return shared.NewValidationError("delta", "must be non zero")
	}
	if input.Kind.IsOutflow() && input.Delta.IsPositive() {
		return shared.NewValidationError("delta", fmt.Sprintf("must be negative for %s", input.Kind))
	}
	if input.Kind == MovementReceipt && input.Delta.IsNegative() {
		return shared.NewValidationError("delta", "must be positive for RECEIPT")
	}
	if input.UnitCost.Valid && input.UnitCost.Decimal.IsNegative() {
		return shared.NewValidationError("unit_cost", "must be >= 0")
	}
	return nil
}

func validatePatch(patch ItemPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return shared.NewValidationError("name", "is required")
	}
	if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
		return shared.NewValidationError("category", "is required")
	}
	if patch.Unit != nil {
		if err := units.Validate(*patch.Unit); err != nil {
			return err
		}
	}
	if patch.Quantity != nil && patch.Quantity.IsNegative() {
		return shared.NewValidationError("quantity", "must be >= 0")
	}
	if patch.MinThreshold != nil && patch.MinThreshold.IsNegative() {
		return shared.NewValidationError("min_threshold", "must be >= 0")
	}
	if patch.UnitCost != nil && patch.UnitCost.IsNegative() {
		return shared.NewValidationError("unit_cost", "must be >= 0")
	}
	return nil
}

func applyPatch(item StockItem, patch ItemPatch) StockItem {
	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		item.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Unit != nil {
		item.Unit = units.Normalize(*patch.Unit)
	}
	if patch.MinThreshold != nil {
		item.MinThreshold = *patch.MinThreshold
	}
	if patch.UnitCost != nil {
		item.UnitCost = decimal.NewNullDecimal(*patch.UnitCost)
	}
	if patch.TrackingEnabled != nil {
		item.TrackingEnabled = *patch.TrackingEnabled
	}
	return item
}

// detailsChanged reports whether anything other than the quantity differs.
func detailsChanged(before, after StockItem) bool {
	return before.Name != after.Name ||
		before.Category != after.Category ||
		before.Unit != after.Unit ||
		before.TrackingEnabled != after.TrackingEnabled ||
		!before.MinThreshold.Equal(after.MinThreshold) ||
		before.UnitCost.Valid != after.UnitCost.Valid ||
		!before.UnitCost.Decimal.Equal(after.UnitCost.Decimal)
}

func (s *Service) afterMovements(ctx context.Context, movements []Movement) {
	if s.integration == nil || len(movements) == 0 {
		return
	}
	if err := s.integration.HandleMovementsRecorded(ctx, movements); err != nil {
		s.logger.Warn("movement integration", slog.Any("error", err), slog.Int("count", len(movements)))
	}
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, itemID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "stock_item",
		EntityID: itemID.String(),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err), slog.String("action", action))
	}
}
