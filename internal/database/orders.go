package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, customer_name, customer_email, customer_phone, notes, total_amount, status, scheduled_pickup_date, picked_up_at, version, created_at, updated_at`

const createOrder = `
INSERT INTO orders (customer_name, customer_email, customer_phone, notes, total_amount, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Notes         pgtype.Text
	TotalAmount   pgtype.Numeric
	Status        string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.CustomerName, arg.CustomerEmail, arg.CustomerPhone, arg.Notes, arg.TotalAmount, arg.Status)
	return scanOrder(row)
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, name, quantity, price)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, product_id, name, quantity, price
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Quantity  int32
	Price     pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ProductID, arg.Name, arg.Quantity, arg.Price)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.Price)
	return it, err
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// GetOrderForUpdate locks the order row (FOR NO KEY UPDATE) so concurrent
// admin transitions serialize on it for the duration of the transaction.
const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR NO KEY UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text = '' OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListOrdersParams struct {
	Status    string
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrdersByCustomerEmail = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_email = $1
ORDER BY created_at DESC
`

func (q *Queries) ListOrdersByCustomerEmail(ctx context.Context, email string) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomerEmail, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsByOrder = `
SELECT id, order_id, product_id, name, quantity, price
FROM order_items
WHERE order_id = $1
ORDER BY name
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// All admin-side order writes are version-checked compare-and-swaps:
// the WHERE clause requires the caller's expected version, and the write
// bumps it. Zero rows updated means the token was stale.

const updateOrderStatus = `
UPDATE orders
SET status = $2, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID              uuid.UUID
	Status          string
	ExpectedVersion int32
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.ExpectedVersion)
	return scanOrder(row)
}

const scheduleOrderPickup = `
UPDATE orders
SET status = $2, scheduled_pickup_date = $3, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $4
RETURNING ` + orderColumns

type ScheduleOrderPickupParams struct {
	ID                  uuid.UUID
	Status              string
	ScheduledPickupDate pgtype.Timestamptz
	ExpectedVersion     int32
}

func (q *Queries) ScheduleOrderPickup(ctx context.Context, arg ScheduleOrderPickupParams) (Order, error) {
	row := q.db.QueryRow(ctx, scheduleOrderPickup,
		arg.ID, arg.Status, arg.ScheduledPickupDate, arg.ExpectedVersion)
	return scanOrder(row)
}

const completeOrderPickup = `
UPDATE orders
SET status = $2, picked_up_at = now(), version = version + 1, updated_at = now()
WHERE id = $1 AND version = $3
RETURNING ` + orderColumns

type CompleteOrderPickupParams struct {
	ID              uuid.UUID
	Status          string
	ExpectedVersion int32
}

func (q *Queries) CompleteOrderPickup(ctx context.Context, arg CompleteOrderPickupParams) (Order, error) {
	row := q.db.QueryRow(ctx, completeOrderPickup, arg.ID, arg.Status, arg.ExpectedVersion)
	return scanOrder(row)
}

// MarkPaymentUploaded is the one customer-driven status write; it is not
// version-checked because the customer never sees the version token, but
// it only fires from AWAITING_PAYMENT so it cannot clobber admin state.
const markPaymentUploaded = `
UPDATE orders
SET status = $2, version = version + 1, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type MarkPaymentUploadedParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

func (q *Queries) MarkPaymentUploaded(ctx context.Context, arg MarkPaymentUploadedParams) (Order, error) {
	row := q.db.QueryRow(ctx, markPaymentUploaded, arg.ID, arg.Status, arg.FromStatus)
	return scanOrder(row)
}

func scanOrder(row scanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Notes,
		&o.TotalAmount, &o.Status, &o.ScheduledPickupDate, &o.PickedUpAt, &o.Version,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}
