package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the checkout service.
var (
	ErrEmptySelection   = errors.New("item_ids are required")
	ErrMissingCustomer  = errors.New("customer name, email and phone are required")
	ErrInvalidItemID    = errors.New("invalid item id")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutStore defines the DB methods needed to place an order.
// Satisfied by *database.Queries (and its WithTx variant).
type CheckoutStore interface {
	ListCartItemsByIDsForUpdate(ctx context.Context, arg database.ListCartItemsByIDsForUpdateParams) ([]database.CartItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	DeleteCartItem(ctx context.Context, arg database.DeleteCartItemParams) error
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// CheckoutRequest is the validated input for placing an order from the
// selected cart lines.
type CheckoutRequest struct {
	UserID        uuid.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Notes         string
	ItemIDs       []string
}

// CheckoutResult is the created order with its snapshotted items.
type CheckoutResult struct {
	Order database.Order
	Items []database.OrderItem
}

// CheckoutService converts selected cart lines into an order.
type CheckoutService struct {
	pool     TxBeginner
	newStore NewCheckoutStore
}

func NewCheckoutService(pool TxBeginner, newStore NewCheckoutStore) *CheckoutService {
	return &CheckoutService{pool: pool, newStore: newStore}
}

// Checkout places an order atomically: it locks the selected cart lines,
// snapshots name/price/quantity into order items, creates the order in
// AWAITING_PAYMENT, and removes only the selected lines from the cart.
// Unselected lines are untouched. The total is the sum of line
// price x quantity at lock time.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.CustomerName == "" || req.CustomerEmail == "" || req.CustomerPhone == "" {
		return nil, ErrMissingCustomer
	}
	if len(req.ItemIDs) == 0 {
		return nil, ErrEmptySelection
	}

	// Duplicate ids collapse to one: the locked-row count below compares
	// against the distinct set.
	itemIDs := make([]uuid.UUID, 0, len(req.ItemIDs))
	seen := make(map[uuid.UUID]bool, len(req.ItemIDs))
	for i, raw := range req.ItemIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("item_ids[%d]: %w", i, ErrInvalidItemID)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		itemIDs = append(itemIDs, id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Lock the lines so a concurrent cart mutation cannot change them
	// between total calculation and removal.
	lines, err := store.ListCartItemsByIDsForUpdate(ctx, database.ListCartItemsByIDsForUpdateParams{
		UserID: req.UserID,
		IDs:    itemIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("lock cart items: %w", err)
	}
	if len(lines) != len(itemIDs) {
		// At least one selected line no longer exists (or belongs to
		// someone else). The whole checkout fails; nothing is removed.
		return nil, ErrCartItemNotFound
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(numericToDecimal(line.Price).Mul(decimal.NewFromInt32(line.Quantity)))
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Notes:         notes,
		TotalAmount:   decimalToNumeric(total),
		Status:        enum.OrderStatusAwaitingPayment,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(lines))
	for _, line := range lines {
		name := line.Name
		if line.Size != "" {
			name += " (" + line.Size
			if line.Color != "" {
				name += ", " + line.Color
			}
			name += ")"
		} else if line.Color != "" {
			name += " (" + line.Color + ")"
		}

		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Name:      name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)

		if err := store.DeleteCartItem(ctx, database.DeleteCartItemParams{
			ID:     line.ID,
			UserID: req.UserID,
		}); err != nil {
			return nil, fmt.Errorf("remove cart item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CheckoutResult{Order: order, Items: items}, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
