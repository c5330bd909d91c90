package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, proof_url, status, rejection_reason, created_at, verified_at`

// CreatePayment inserts a fresh PENDING row for each proof upload.
// Rejected rows are never mutated back to pending; they stay as history
// and the newest row is the authoritative one.
const createPayment = `
INSERT INTO payments (order_id, proof_url, status)
VALUES ($1, $2, $3)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID  uuid.UUID
	ProofUrl string
	Status   string
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPayment, arg.OrderID, arg.ProofUrl, arg.Status)
	return scanPayment(row)
}

const getLatestPaymentByOrder = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_id = $1
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getLatestPaymentByOrder, orderID))
}

const listPaymentsByOrder = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const verifyPayment = `
UPDATE payments
SET status = $2, verified_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + paymentColumns

type VerifyPaymentParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

func (q *Queries) VerifyPayment(ctx context.Context, arg VerifyPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, verifyPayment, arg.ID, arg.Status, arg.FromStatus)
	return scanPayment(row)
}

const rejectPayment = `
UPDATE payments
SET status = $2, rejection_reason = $3
WHERE id = $1 AND status = $4
RETURNING ` + paymentColumns

type RejectPaymentParams struct {
	ID              uuid.UUID
	Status          string
	RejectionReason pgtype.Text
	FromStatus      string
}

func (q *Queries) RejectPayment(ctx context.Context, arg RejectPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, rejectPayment, arg.ID, arg.Status, arg.RejectionReason, arg.FromStatus)
	return scanPayment(row)
}

func scanPayment(row scanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.ProofUrl, &p.Status, &p.RejectionReason,
		&p.CreatedAt, &p.VerifiedAt)
	return p, err
}
