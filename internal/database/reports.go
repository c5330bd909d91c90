package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Revenue aggregates count COMPLETED orders only; the filter lives here
// at the query layer so every reporting surface inherits it.

const getRevenueSummary = `
SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
FROM orders
WHERE status = 'COMPLETED'
  AND created_at >= $1 AND created_at < $2
`

type GetRevenueSummaryParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type GetRevenueSummaryRow struct {
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetRevenueSummary(ctx context.Context, arg GetRevenueSummaryParams) (GetRevenueSummaryRow, error) {
	row := q.db.QueryRow(ctx, getRevenueSummary, arg.StartDate, arg.EndDate)
	var r GetRevenueSummaryRow
	err := row.Scan(&r.OrderCount, &r.TotalRevenue)
	return r, err
}

const getDailySales = `
SELECT DATE(created_at) AS sale_date, COUNT(*), COALESCE(SUM(total_amount), 0)
FROM orders
WHERE status = 'COMPLETED'
  AND created_at >= $1 AND created_at < $2
GROUP BY DATE(created_at)
ORDER BY sale_date
`

type GetDailySalesParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type GetDailySalesRow struct {
	SaleDate     pgtype.Date
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GetDailySalesRow
	for rows.Next() {
		var r GetDailySalesRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getProductSales = `
SELECT oi.product_id, oi.name, SUM(oi.quantity), COALESCE(SUM(oi.price * oi.quantity), 0)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.status = 'COMPLETED'
  AND o.created_at >= $1 AND o.created_at < $2
GROUP BY oi.product_id, oi.name
ORDER BY SUM(oi.quantity) DESC
LIMIT $3
`

type GetProductSalesParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
}

type GetProductSalesRow struct {
	ProductID    uuid.UUID
	ProductName  string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetProductSales(ctx context.Context, arg GetProductSalesParams) ([]GetProductSalesRow, error) {
	rows, err := q.db.Query(ctx, getProductSales, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GetProductSalesRow
	for rows.Next() {
		var r GetProductSalesRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.QuantitySold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
