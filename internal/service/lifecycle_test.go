package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// mockLifecycleStore implements LifecycleStore with configurable
// behavior; counters record which writes actually happened.
type mockLifecycleStore struct {
	getOrderForUpdateFn   func(ctx context.Context, id uuid.UUID) (database.Order, error)
	updateOrderStatusFn   func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	schedulePickupFn      func(ctx context.Context, arg database.ScheduleOrderPickupParams) (database.Order, error)
	completePickupFn      func(ctx context.Context, arg database.CompleteOrderPickupParams) (database.Order, error)
	markUploadedFn        func(ctx context.Context, arg database.MarkPaymentUploadedParams) (database.Order, error)
	getLatestPaymentFn    func(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	createPaymentFn       func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	verifyPaymentFn       func(ctx context.Context, arg database.VerifyPaymentParams) (database.Payment, error)
	rejectPaymentFn       func(ctx context.Context, arg database.RejectPaymentParams) (database.Payment, error)
	createAuditLogFn      func(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error)

	orderWrites   int
	paymentWrites int
	auditWrites   int
}

func (m *mockLifecycleStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockLifecycleStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	m.orderWrites++
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockLifecycleStore) ScheduleOrderPickup(ctx context.Context, arg database.ScheduleOrderPickupParams) (database.Order, error) {
	m.orderWrites++
	return m.schedulePickupFn(ctx, arg)
}
func (m *mockLifecycleStore) CompleteOrderPickup(ctx context.Context, arg database.CompleteOrderPickupParams) (database.Order, error) {
	m.orderWrites++
	return m.completePickupFn(ctx, arg)
}
func (m *mockLifecycleStore) MarkPaymentUploaded(ctx context.Context, arg database.MarkPaymentUploadedParams) (database.Order, error) {
	m.orderWrites++
	return m.markUploadedFn(ctx, arg)
}
func (m *mockLifecycleStore) GetLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (database.Payment, error) {
	return m.getLatestPaymentFn(ctx, orderID)
}
func (m *mockLifecycleStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	m.paymentWrites++
	return m.createPaymentFn(ctx, arg)
}
func (m *mockLifecycleStore) VerifyPayment(ctx context.Context, arg database.VerifyPaymentParams) (database.Payment, error) {
	m.paymentWrites++
	return m.verifyPaymentFn(ctx, arg)
}
func (m *mockLifecycleStore) RejectPayment(ctx context.Context, arg database.RejectPaymentParams) (database.Payment, error) {
	m.paymentWrites++
	return m.rejectPaymentFn(ctx, arg)
}
func (m *mockLifecycleStore) CreateAuditLog(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error) {
	m.auditWrites++
	return m.createAuditLogFn(ctx, arg)
}

func newTestLifecycle(store *mockLifecycleStore) (*LifecycleService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) LifecycleStore { return store }
	return NewLifecycleService(pool, newStore), tx
}

// lifecycleStoreFor returns a store holding one order in the given
// status at version 3, with a pending payment attached.
func lifecycleStoreFor(orderID uuid.UUID, status string) *mockLifecycleStore {
	order := database.Order{ID: orderID, Status: status, Version: 3}
	payment := database.Payment{ID: uuid.New(), OrderID: orderID, Status: enum.PaymentStatusPending}

	return &mockLifecycleStore{
		getOrderForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			if id == orderID {
				return order, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
		getLatestPaymentFn: func(ctx context.Context, oid uuid.UUID) (database.Payment, error) {
			return payment, nil
		},
		updateOrderStatusFn: func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
			o := order
			o.Status = arg.Status
			o.Version = arg.ExpectedVersion + 1
			return o, nil
		},
		schedulePickupFn: func(ctx context.Context, arg database.ScheduleOrderPickupParams) (database.Order, error) {
			o := order
			o.Status = arg.Status
			o.ScheduledPickupDate = arg.ScheduledPickupDate
			o.Version = arg.ExpectedVersion + 1
			return o, nil
		},
		completePickupFn: func(ctx context.Context, arg database.CompleteOrderPickupParams) (database.Order, error) {
			o := order
			o.Status = arg.Status
			o.Version = arg.ExpectedVersion + 1
			return o, nil
		},
		markUploadedFn: func(ctx context.Context, arg database.MarkPaymentUploadedParams) (database.Order, error) {
			o := order
			o.Status = arg.Status
			o.Version = order.Version + 1
			return o, nil
		},
		createPaymentFn: func(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			return database.Payment{ID: uuid.New(), OrderID: arg.OrderID, ProofUrl: arg.ProofUrl, Status: arg.Status}, nil
		},
		verifyPaymentFn: func(ctx context.Context, arg database.VerifyPaymentParams) (database.Payment, error) {
			p := payment
			p.Status = arg.Status
			return p, nil
		},
		rejectPaymentFn: func(ctx context.Context, arg database.RejectPaymentParams) (database.Payment, error) {
			p := payment
			p.Status = arg.Status
			p.RejectionReason = arg.RejectionReason
			return p, nil
		},
		createAuditLogFn: func(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error) {
			return database.AuditLog{ID: uuid.New(), OrderID: arg.OrderID, AdminID: arg.AdminID,
				Action: arg.Action, FromStatus: arg.FromStatus, ToStatus: arg.ToStatus}, nil
		},
	}
}

// --- Optimistic locking ---

func TestLifecycle_StaleVersionRejected(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusPending)
	svc, tx := newTestLifecycle(store)

	// The row is at version 3; admin A still holds version 2.
	_, err := svc.AcceptPayment(context.Background(), AcceptPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: 2,
		PickupDate:      time.Now().Add(48 * time.Hour),
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("error: got %v, want ErrVersionConflict", err)
	}
	if store.orderWrites != 0 || store.paymentWrites != 0 {
		t.Error("stale write must not modify anything")
	}
	if tx.committed {
		t.Error("transaction must not commit")
	}
}

func TestLifecycle_CurrentVersionAccepted(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusPending)
	svc, _ := newTestLifecycle(store)

	order, err := svc.AcceptPayment(context.Background(), AcceptPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: 3,
		PickupDate:      time.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("accept payment: %v", err)
	}
	if order.Status != enum.OrderStatusReadyForPickup {
		t.Errorf("status: got %s, want %s", order.Status, enum.OrderStatusReadyForPickup)
	}
	if order.Version != 4 {
		t.Errorf("version: got %d, want 4", order.Version)
	}
}

func TestLifecycle_OrderNotFound(t *testing.T) {
	store := lifecycleStoreFor(uuid.New(), enum.OrderStatusPending)
	svc, _ := newTestLifecycle(store)

	_, err := svc.Cancel(context.Background(), CancelRequest{OrderID: uuid.New(), ExpectedVersion: 3})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("error: got %v, want ErrOrderNotFound", err)
	}
}

// --- Transition guards ---

func TestAcceptPayment_RequiresPickupDate(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusPending)
	svc, _ := newTestLifecycle(store)

	_, err := svc.AcceptPayment(context.Background(), AcceptPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: 3,
	})
	if !errors.Is(err, ErrPickupDateRequired) {
		t.Fatalf("error: got %v, want ErrPickupDateRequired", err)
	}
	if store.paymentWrites != 0 {
		t.Error("payment must stay pending when the guard fails")
	}
}

func TestRejectPayment_RequiresReason(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusPending)
	svc, _ := newTestLifecycle(store)

	_, err := svc.RejectPayment(context.Background(), RejectPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: 3,
	})
	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("error: got %v, want ErrReasonRequired", err)
	}
	if store.paymentWrites != 0 {
		t.Error("payment must stay pending when the guard fails")
	}
}

func TestRejectPayment_ReturnsOrderToAwaitingPayment(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusPending)
	svc, _ := newTestLifecycle(store)

	order, err := svc.RejectPayment(context.Background(), RejectPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: 3,
		Reason:          "proof image unreadable",
	})
	if err != nil {
		t.Fatalf("reject payment: %v", err)
	}
	if order.Status != enum.OrderStatusAwaitingPayment {
		t.Errorf("status: got %s, want %s", order.Status, enum.OrderStatusAwaitingPayment)
	}
	if store.paymentWrites != 1 {
		t.Errorf("payment writes: got %d, want 1", store.paymentWrites)
	}
}

func TestAcceptPayment_WrongOrderStatus(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusAwaitingPayment)
	svc, _ := newTestLifecycle(store)

	_, err := svc.AcceptPayment(context.Background(), AcceptPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: 3,
		PickupDate:      time.Now().Add(24 * time.Hour),
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error: got %v, want ErrInvalidTransition", err)
	}
}

func TestMarkPickedUp_OnlyFromReadyForPickup(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusPending)
	svc, _ := newTestLifecycle(store)

	_, err := svc.MarkPickedUp(context.Background(), MarkPickedUpRequest{OrderID: orderID, ExpectedVersion: 3})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error: got %v, want ErrInvalidTransition", err)
	}

	store = lifecycleStoreFor(orderID, enum.OrderStatusReadyForPickup)
	svc, _ = newTestLifecycle(store)

	order, err := svc.MarkPickedUp(context.Background(), MarkPickedUpRequest{OrderID: orderID, ExpectedVersion: 3})
	if err != nil {
		t.Fatalf("mark picked up: %v", err)
	}
	if order.Status != enum.OrderStatusCompleted {
		t.Errorf("status: got %s, want %s", order.Status, enum.OrderStatusCompleted)
	}
}

func TestCancel_TerminalOrderRejected(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusCompleted)
	svc, _ := newTestLifecycle(store)

	_, err := svc.Cancel(context.Background(), CancelRequest{OrderID: orderID, ExpectedVersion: 3})
	if !errors.Is(err, ErrTerminalStatus) {
		t.Errorf("error: got %v, want ErrTerminalStatus", err)
	}
}

func TestCancel_FromAnyNonTerminalStatus(t *testing.T) {
	for _, status := range []string{
		enum.OrderStatusAwaitingPayment,
		enum.OrderStatusPending,
		enum.OrderStatusReadyForPickup,
	} {
		orderID := uuid.New()
		store := lifecycleStoreFor(orderID, status)
		svc, _ := newTestLifecycle(store)

		order, err := svc.Cancel(context.Background(), CancelRequest{OrderID: orderID, ExpectedVersion: 3})
		if err != nil {
			t.Fatalf("cancel from %s: %v", status, err)
		}
		if order.Status != enum.OrderStatusCancelled {
			t.Errorf("cancel from %s: got %s, want %s", status, order.Status, enum.OrderStatusCancelled)
		}
	}
}

// --- Administrative override ---

func TestOverride_BypassesGuardsButWritesAudit(t *testing.T) {
	orderID := uuid.New()
	adminID := uuid.New()
	// AWAITING_PAYMENT straight to COMPLETED is not a guarded transition.
	store := lifecycleStoreFor(orderID, enum.OrderStatusAwaitingPayment)
	svc, _ := newTestLifecycle(store)

	var audit database.CreateAuditLogParams
	inner := store.createAuditLogFn
	store.createAuditLogFn = func(ctx context.Context, arg database.CreateAuditLogParams) (database.AuditLog, error) {
		audit = arg
		return inner(ctx, arg)
	}

	order, err := svc.Override(context.Background(), OverrideRequest{
		OrderID:         orderID,
		ExpectedVersion: 3,
		ToStatus:        enum.OrderStatusCompleted,
		AdminID:         adminID,
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if order.Status != enum.OrderStatusCompleted {
		t.Errorf("status: got %s, want %s", order.Status, enum.OrderStatusCompleted)
	}
	if store.auditWrites != 1 {
		t.Fatalf("audit writes: got %d, want 1", store.auditWrites)
	}
	if audit.AdminID != adminID || audit.FromStatus != enum.OrderStatusAwaitingPayment || audit.ToStatus != enum.OrderStatusCompleted {
		t.Errorf("audit row: got %+v", audit)
	}
}

func TestOverride_UnknownStatusRejected(t *testing.T) {
	store := lifecycleStoreFor(uuid.New(), enum.OrderStatusPending)
	svc, _ := newTestLifecycle(store)

	_, err := svc.Override(context.Background(), OverrideRequest{
		OrderID:         uuid.New(),
		ExpectedVersion: 3,
		ToStatus:        "SHIPPED",
		AdminID:         uuid.New(),
	})
	if !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("error: got %v, want ErrUnknownStatus", err)
	}
}

// --- Customer proof upload ---

func TestUploadProof_CreatesNewPaymentAndMovesOrder(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusAwaitingPayment)
	svc, tx := newTestLifecycle(store)

	result, err := svc.UploadProof(context.Background(), UploadProofRequest{
		OrderID:  orderID,
		ProofURL: "https://cdn.example.edu/uploads/proofs/abc.jpg",
	})
	if err != nil {
		t.Fatalf("upload proof: %v", err)
	}
	if result.Order.Status != enum.OrderStatusPending {
		t.Errorf("order status: got %s, want %s", result.Order.Status, enum.OrderStatusPending)
	}
	if result.Payment.Status != enum.PaymentStatusPending {
		t.Errorf("payment status: got %s, want %s", result.Payment.Status, enum.PaymentStatusPending)
	}
	if store.paymentWrites != 1 {
		t.Errorf("payment writes: got %d, want 1", store.paymentWrites)
	}
	if !tx.committed {
		t.Error("transaction must commit")
	}
}

func TestUploadProof_OnlyFromAwaitingPayment(t *testing.T) {
	orderID := uuid.New()
	store := lifecycleStoreFor(orderID, enum.OrderStatusReadyForPickup)
	svc, _ := newTestLifecycle(store)

	_, err := svc.UploadProof(context.Background(), UploadProofRequest{
		OrderID:  orderID,
		ProofURL: "https://cdn.example.edu/uploads/proofs/abc.jpg",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error: got %v, want ErrInvalidTransition", err)
	}
	if store.paymentWrites != 0 {
		t.Error("no payment row may be created")
	}
}

func TestUploadProof_RequiresProofURL(t *testing.T) {
	store := lifecycleStoreFor(uuid.New(), enum.OrderStatusAwaitingPayment)
	svc, _ := newTestLifecycle(store)

	if _, err := svc.UploadProof(context.Background(), UploadProofRequest{OrderID: uuid.New()}); !errors.Is(err, ErrProofRequired) {
		t.Errorf("error: got %v, want ErrProofRequired", err)
	}
}
