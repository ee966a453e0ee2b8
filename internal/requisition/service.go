package requisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/storeledger/internal/inventory"
	"github.com/odyssey-erp/storeledger/internal/shared"
	"github.com/odyssey-erp/storeledger/internal/units"
)

const approvalModule = "REQUISITION"

// RepositoryPort abstracts requisition storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Requisition, error)
	List(ctx context.Context, filter ListFilter) ([]Requisition, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	Insert(ctx context.Context, req Requisition) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (Requisition, error)
	// Resolve stores the status, approver, resolution time and line outcomes.
	Resolve(ctx context.Context, req Requisition) error
}

// StockPort records the fulfilment movements of an approval.
type StockPort interface {
	RecordBatch(ctx context.Context, inputs []inventory.RecordInput, opts inventory.BatchOptions) ([]inventory.BatchResult, error)
}

// ApprovalPort keeps the approval trail.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Service runs the requisition workflow.
type Service struct {
	repo      RepositoryPort
	stock     StockPort
	approvals ApprovalPort
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service. approvals may be nil.
func NewService(repo RepositoryPort, stock StockPort, approvals ApprovalPort, policy Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = PolicyLenient
	}
	return &Service{
		repo:      repo,
		stock:     stock,
		approvals: approvals,
		policy:    policy,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit records a PENDING requisition.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (Requisition, error) {
	name := strings.TrimSpace(input.RequesterName)
	if name == "" {
		return Requisition{}, shared.NewValidationError("requester_name", "is required")
	}
	if len(input.Lines) == 0 {
		return Requisition{}, shared.NewValidationError("lines", "at least one line is required")
	}
	req := Requisition{
		ID:            uuid.New(),
		RequesterName: name,
		RequesterRole: strings.TrimSpace(input.RequesterRole),
		Status:        StatusPending,
		CreatedAt:     s.now(),
		Lines:         make([]Line, 0, len(input.Lines)),
	}
	for i, in := range input.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if !in.Quantity.IsPositive() {
			return Requisition{}, shared.NewValidationError(field+".quantity", "must be > 0")
		}
		itemName := strings.TrimSpace(in.ItemName)
		if itemName == "" && in.ItemID == nil {
			return Requisition{}, shared.NewValidationError(field+".item_name", "is required")
		}
		unit := units.Normalize(in.Unit)
		if unit != "" {
			if err := units.Validate(unit); err != nil {
				return Requisition{}, err
			}
		}
		req.Lines = append(req.Lines, Line{
			ItemID:     in.ItemID,
			ItemName:   itemName,
			Quantity:   in.Quantity,
			Unit:       unit,
			Department: strings.TrimSpace(in.Department),
		})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Insert(ctx, req)
	})
	if err != nil {
		return Requisition{}, err
	}
	s.recordApproval(ctx, req.ID, name, shared.ApprovalSubmit, fmt.Sprintf("%d line(s) requested", len(req.Lines)))
	return req, nil
}

// Approve fulfils a PENDING requisition. Under the lenient policy lines that cannot be
// fulfilled are skipped and the requisition is still APPROVED.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approver string) (Requisition, error) {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return Requisition{}, shared.NewValidationError("approver", "is required")
	}
	var req Requisition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return fmt.Errorf("requisition %s is %s: %w", id, req.Status, shared.ErrInvalidState)
		}
		if err := s.fulfil(ctx, &req, approver); err != nil {
			return err
		}
		now := s.now()
		req.Status = StatusApproved
		req.Approver = approver
		req.ResolvedAt = &now
		return tx.Resolve(ctx, req)
	})
	if err != nil {
		return Requisition{}, err
	}
	skipped := 0
	for _, line := range req.Lines {
		if !line.Fulfilled {
			skipped++
		}
	}
	if skipped > 0 {
		s.logger.Info("requisition approved with skipped lines",
			slog.String("requisition_id", id.String()), slog.Int("skipped", skipped))
	}
	s.recordApproval(ctx, id, approver, shared.ApprovalApprove, fmt.Sprintf("%d of %d line(s) fulfilled", len(req.Lines)-skipped, len(req.Lines)))
	return req, nil
}

// Reject closes a PENDING requisition without touching stock.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, approver string) (Requisition, error) {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return Requisition{}, shared.NewValidationError("approver", "is required")
	}
	var req Requisition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return fmt.Errorf("requisition %s is %s: %w", id, req.Status, shared.ErrInvalidState)
		}
		now := s.now()
		req.Status = StatusRejected
		req.Approver = approver
		req.ResolvedAt = &now
		return tx.Resolve(ctx, req)
	})
	if err != nil {
		return Requisition{}, err
	}
	s.recordApproval(ctx, id, approver, shared.ApprovalReject, "")
	return req, nil
}

// Get returns one requisition.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Requisition, error) {
	return s.repo.Get(ctx, id)
}

// List returns requisitions, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Requisition, error) {
	switch filter.Status {
	case "", StatusPending, StatusApproved, StatusRejected:
	default:
		return nil, shared.NewValidationError("status", fmt.Sprintf("%q is not a requisition status", filter.Status))
	}
	return s.repo.List(ctx, filter)
}

// History returns the approval trail of a requisition.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]shared.ApprovalLog, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, approvalModule, id)
}

func fulfilmentKey(id uuid.UUID) string {
	return "REQUISITION:" + id.String()
}

// fulfil records one movement per stock line and writes each line's outcome into req.
func (s *Service) fulfil(ctx context.Context, req *Requisition, approver string) error {
	var (
		inputs  []inventory.RecordInput
		indexes []int
	)
	for i := range req.Lines {
		line := &req.Lines[i]
		if line.ItemID == nil {
			line.SkipReason = SkipNotStockItem
			continue
		}
		inputs = append(inputs, inventory.RecordInput{
			ItemID:      *line.ItemID,
			Kind:        inventory.MovementRequisitionFulfillment,
			Delta:       line.Quantity.Neg(),
			Reason:      fulfilmentReasonPrefix + line.Department,
			Actor:       approver,
			Recipient:   req.RequesterName,
			Destination: line.Department,
		})
		indexes = append(indexes, i)
	}
	if len(inputs) == 0 {
		return nil
	}
	// Keyed by requisition so stock committed before a failed resolve is never posted twice.
	results, err := s.stock.RecordBatch(ctx, inputs, inventory.BatchOptions{
		SkipInsufficient: s.policy == PolicyLenient,
		IdempotencyKey:   fulfilmentKey(req.ID),
	})
	if err != nil {
		return err
	}
	for n, res := range results {
		line := &req.Lines[indexes[n]]
		switch {
		case res.Movement != nil:
			id := res.Movement.ID
			line.Fulfilled = true
			line.MovementID = &id
		case errors.Is(res.Err, shared.ErrNotFound):
			line.SkipReason = SkipItemNotFound
		default:
			line.SkipReason = SkipInsufficientStock
		}
	}
	return nil
}

func (s *Service) recordApproval(ctx context.Context, id uuid.UUID, actor string, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module: approvalModule,
		RefID:  id,
		Actor:  actor,
		Action: action,
		Note:   note,
	}); err != nil {
		s.logger.Warn("record approval", slog.Any("error", err), slog.String("requisition_id", id.String()))
	}
}
