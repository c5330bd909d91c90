package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/campusmerch/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ReportStore defines the aggregate queries the report handlers need.
// Only COMPLETED orders count toward revenue; the queries enforce that.
type ReportStore interface {
	GetRevenueSummary(ctx context.Context, arg database.GetRevenueSummaryParams) (database.GetRevenueSummaryRow, error)
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetProductSales(ctx context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error)
}

type ReportHandler struct {
	store ReportStore
}

func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers reporting endpoints. Expected to be mounted
// with Authenticate and RequireRole(ADMIN).
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/daily", h.DailySales)
	r.Get("/products", h.ProductSales)
}

type revenueSummaryResponse struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

type dailySalesResponse struct {
	Date         string `json:"date"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

type productSalesResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

// reportRange parses start_date/end_date query params. Defaults to the
// last 30 days; the end date is inclusive.
func reportRange(r *http.Request) (start, end time.Time, ok bool) {
	q := r.URL.Query()

	now := time.Now().UTC().Truncate(24 * time.Hour)
	start = now.AddDate(0, 0, -29)
	end = now

	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Summary handles GET /admin/reports/summary.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	start, end, ok := reportRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return
	}

	row, err := h.store.GetRevenueSummary(r.Context(), database.GetRevenueSummaryParams{
		StartDate: pgtype.Timestamptz{Time: start, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: end.AddDate(0, 0, 1), Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: revenue summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, revenueSummaryResponse{
		StartDate:    start.Format("2006-01-02"),
		EndDate:      end.Format("2006-01-02"),
		OrderCount:   row.OrderCount,
		TotalRevenue: numericToDecimal(row.TotalRevenue).StringFixed(2),
	})
}

// DailySales handles GET /admin/reports/daily.
func (h *ReportHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	start, end, ok := reportRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		StartDate: pgtype.Timestamptz{Time: start, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: end.AddDate(0, 0, 1), Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: daily sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySalesResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, dailySalesResponse{
			Date:         row.SaleDate.Time.Format("2006-01-02"),
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToDecimal(row.TotalRevenue).StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"days": resp})
}

// ProductSales handles GET /admin/reports/products: best sellers by
// quantity over the range.
func (h *ReportHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	start, end, ok := reportRange(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date range"})
		return
	}

	limit := int32(10)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 100"})
			return
		}
		limit = int32(n)
	}

	rows, err := h.store.GetProductSales(r.Context(), database.GetProductSalesParams{
		StartDate: pgtype.Timestamptz{Time: start, Valid: true},
		EndDate:   pgtype.Timestamptz{Time: end.AddDate(0, 0, 1), Valid: true},
		Limit:     limit,
	})
	if err != nil {
		log.Printf("ERROR: product sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productSalesResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, productSalesResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToDecimal(row.TotalRevenue).StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": resp})
}
