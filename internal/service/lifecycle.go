package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Errors returned by the lifecycle service.
var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrVersionConflict    = errors.New("order was modified by another admin, please refresh")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTerminalStatus     = errors.New("order is in a terminal status")
	ErrPickupDateRequired = errors.New("pickup date is required")
	ErrReasonRequired     = errors.New("rejection reason is required")
	ErrPaymentNotFound    = errors.New("no payment uploaded for this order")
	ErrPaymentNotPending  = errors.New("payment is not awaiting verification")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrProofRequired      = errors.New("payment proof is required")
)

// allowedTransitions is the guarded state machine. The admin override
// path deliberately bypasses it.
var allowedTransitions = map[string][]string{
	enum.OrderStatusAwaitingPayment: {enum.OrderStatusPending, enum.OrderStatusCancelled},
	enum.OrderStatusPending:         {enum.OrderStatusReadyForPickup, enum.OrderStatusAwaitingPayment, enum.OrderStatusCancelled},
	enum.OrderStatusReadyForPickup:  {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
	enum.OrderStatusCompleted:       {},
	enum.OrderStatusCancelled:       {},
}

func isKnownStatus(s string) bool {
	_, ok := allowedTransitions[s]
	return ok
}

func isTerminal(s string) bool {
	return s == enum.OrderStatusCompleted || s == enum.OrderStatusCancelled
}

func canTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LifecycleStore defines the DB methods needed for order transitions.
// Satisfied by *database.Queries (and its WithTx variant).
type LifecycleStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ScheduleOrderPickup(ctx context.Context, arg database.ScheduleOrderPickupParams) (database.Order, error)
	CompleteOrderPickup(ctx context.Context, arg database.CompleteOrderPickupParams) (database.Order, error)
	MarkPaymentUploaded(ctx context.Context, arg database.MarkPaymentUploadedParams) (database.Order, error)
	GetLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	VerifyPayment(ctx context.Context, arg database.VerifyPaymentParams) (database.Payment, error)
	RejectPayment(ctx context.Context, arg database.RejectPaymentParams) (database.Payment, error)
	CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)
}

// NewLifecycleStore creates a LifecycleStore from a DBTX (pool or tx).
type NewLifecycleStore func(db database.DBTX) LifecycleStore

// LifecycleService enforces the order state machine. Every admin-driven
// mutation is version-checked: the caller presents the version it last
// read, the row is locked, and a mismatch rejects the write before
// anything changes.
type LifecycleService struct {
	pool     TxBeginner
	newStore NewLifecycleStore
}

func NewLifecycleService(pool TxBeginner, newStore NewLifecycleStore) *LifecycleService {
	return &LifecycleService{pool: pool, newStore: newStore}
}

// loadForAdminWrite locks the order and checks the caller's version
// token. All guards run against the locked row, so nothing can change
// between the check and the write.
func loadForAdminWrite(ctx context.Context, store LifecycleStore, orderID uuid.UUID, expectedVersion int32) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Version != expectedVersion {
		return database.Order{}, ErrVersionConflict
	}
	return order, nil
}

// AcceptPaymentRequest verifies the pending payment and schedules pickup.
type AcceptPaymentRequest struct {
	OrderID         uuid.UUID
	ExpectedVersion int32
	PickupDate      time.Time
}

func (s *LifecycleService) AcceptPayment(ctx context.Context, req AcceptPaymentRequest) (*database.Order, error) {
	if req.PickupDate.IsZero() {
		return nil, ErrPickupDateRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := loadForAdminWrite(ctx, store, req.OrderID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if !canTransition(order.Status, enum.OrderStatusReadyForPickup) {
		return nil, ErrInvalidTransition
	}

	payment, err := store.GetLatestPaymentByOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment.Status != enum.PaymentStatusPending {
		return nil, ErrPaymentNotPending
	}

	if _, err := store.VerifyPayment(ctx, database.VerifyPaymentParams{
		ID:         payment.ID,
		Status:     enum.PaymentStatusVerified,
		FromStatus: enum.PaymentStatusPending,
	}); err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}

	updated, err := store.ScheduleOrderPickup(ctx, database.ScheduleOrderPickupParams{
		ID:                  req.OrderID,
		Status:              enum.OrderStatusReadyForPickup,
		ScheduledPickupDate: pgtype.Timestamptz{Time: req.PickupDate, Valid: true},
		ExpectedVersion:     req.ExpectedVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule pickup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// RejectPaymentRequest rejects the pending payment with a reason and
// sends the order back to AWAITING_PAYMENT for a fresh upload.
type RejectPaymentRequest struct {
	OrderID         uuid.UUID
	ExpectedVersion int32
	Reason          string
}

func (s *LifecycleService) RejectPayment(ctx context.Context, req RejectPaymentRequest) (*database.Order, error) {
	if req.Reason == "" {
		return nil, ErrReasonRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := loadForAdminWrite(ctx, store, req.OrderID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if !canTransition(order.Status, enum.OrderStatusAwaitingPayment) {
		return nil, ErrInvalidTransition
	}

	payment, err := store.GetLatestPaymentByOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment.Status != enum.PaymentStatusPending {
		return nil, ErrPaymentNotPending
	}

	if _, err := store.RejectPayment(ctx, database.RejectPaymentParams{
		ID:              payment.ID,
		Status:          enum.PaymentStatusRejected,
		RejectionReason: pgtype.Text{String: req.Reason, Valid: true},
		FromStatus:      enum.PaymentStatusPending,
	}); err != nil {
		return nil, fmt.Errorf("reject payment: %w", err)
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:              req.OrderID,
		Status:          enum.OrderStatusAwaitingPayment,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// MarkPickedUpRequest completes the order after customer pickup.
type MarkPickedUpRequest struct {
	OrderID         uuid.UUID
	ExpectedVersion int32
}

func (s *LifecycleService) MarkPickedUp(ctx context.Context, req MarkPickedUpRequest) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := loadForAdminWrite(ctx, store, req.OrderID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if !canTransition(order.Status, enum.OrderStatusCompleted) {
		return nil, ErrInvalidTransition
	}

	updated, err := store.CompleteOrderPickup(ctx, database.CompleteOrderPickupParams{
		ID:              req.OrderID,
		Status:          enum.OrderStatusCompleted,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("complete pickup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// CancelRequest cancels a non-terminal order.
type CancelRequest struct {
	OrderID         uuid.UUID
	ExpectedVersion int32
}

func (s *LifecycleService) Cancel(ctx context.Context, req CancelRequest) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := loadForAdminWrite(ctx, store, req.OrderID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if isTerminal(order.Status) {
		return nil, ErrTerminalStatus
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:              req.OrderID,
		Status:          enum.OrderStatusCancelled,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// OverrideRequest is the administrative escape hatch: a direct status
// write that skips the guarded transition table. It still version-checks
// and refuses terminal orders, and every use leaves an audit row naming
// the admin in the same transaction.
type OverrideRequest struct {
	OrderID         uuid.UUID
	ExpectedVersion int32
	ToStatus        string
	AdminID         uuid.UUID
}

func (s *LifecycleService) Override(ctx context.Context, req OverrideRequest) (*database.Order, error) {
	if !isKnownStatus(req.ToStatus) {
		return nil, ErrUnknownStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := loadForAdminWrite(ctx, store, req.OrderID, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if isTerminal(order.Status) {
		return nil, ErrTerminalStatus
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:              req.OrderID,
		Status:          req.ToStatus,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if _, err := store.CreateAuditLog(ctx, database.CreateAuditLogParams{
		OrderID:    req.OrderID,
		AdminID:    req.AdminID,
		Action:     enum.AuditActionStatusOverride,
		FromStatus: order.Status,
		ToStatus:   req.ToStatus,
	}); err != nil {
		return nil, fmt.Errorf("create audit log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// UploadProofRequest is the customer-driven transition: a fresh proof
// upload creates a new PENDING payment row (a rejected payment stays in
// history; the newest row is authoritative) and moves the order from
// AWAITING_PAYMENT to PENDING. It is not version-checked because the
// customer never holds a version token.
type UploadProofRequest struct {
	OrderID  uuid.UUID
	ProofURL string
}

// UploadProofResult carries the order and the payment row the upload
// created.
type UploadProofResult struct {
	Order   database.Order
	Payment database.Payment
}

func (s *LifecycleService) UploadProof(ctx context.Context, req UploadProofRequest) (*UploadProofResult, error) {
	if req.ProofURL == "" {
		return nil, ErrProofRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusAwaitingPayment {
		return nil, ErrInvalidTransition
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:  req.OrderID,
		ProofUrl: req.ProofURL,
		Status:   enum.PaymentStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	updated, err := store.MarkPaymentUploaded(ctx, database.MarkPaymentUploadedParams{
		ID:         req.OrderID,
		Status:     enum.OrderStatusPending,
		FromStatus: enum.OrderStatusAwaitingPayment,
	})
	if err != nil {
		return nil, fmt.Errorf("mark payment uploaded: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &UploadProofResult{Order: updated, Payment: payment}, nil
}
