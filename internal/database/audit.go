package database

import (
	"context"

	"github.com/google/uuid"
)

const createAuditLog = `
INSERT INTO audit_logs (order_id, admin_id, action, from_status, to_status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, admin_id, action, from_status, to_status, created_at
`

type CreateAuditLogParams struct {
	OrderID    uuid.UUID
	AdminID    uuid.UUID
	Action     string
	FromStatus string
	ToStatus   string
}

func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) (AuditLog, error) {
	row := q.db.QueryRow(ctx, createAuditLog,
		arg.OrderID, arg.AdminID, arg.Action, arg.FromStatus, arg.ToStatus)
	var a AuditLog
	err := row.Scan(&a.ID, &a.OrderID, &a.AdminID, &a.Action, &a.FromStatus, &a.ToStatus, &a.CreatedAt)
	return a, err
}

const listAuditLogsByOrder = `
SELECT id, order_id, admin_id, action, from_status, to_status, created_at
FROM audit_logs
WHERE order_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListAuditLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLogsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var a AuditLog
		if err := rows.Scan(&a.ID, &a.OrderID, &a.AdminID, &a.Action, &a.FromStatus, &a.ToStatus, &a.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}
