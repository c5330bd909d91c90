package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/campusmerch/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

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

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func timeOrNil(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

// --- Shared response types ---

type orderResponse struct {
	ID                  uuid.UUID  `json:"id"`
	CustomerName        string     `json:"customer_name"`
	CustomerEmail       string     `json:"customer_email"`
	CustomerPhone       string     `json:"customer_phone"`
	Notes               string     `json:"notes,omitempty"`
	TotalAmount         string     `json:"total_amount"`
	Status              string     `json:"status"`
	ScheduledPickupDate *time.Time `json:"scheduled_pickup_date,omitempty"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	Version             int32      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                  o.ID,
		CustomerName:        o.CustomerName,
		CustomerEmail:       o.CustomerEmail,
		CustomerPhone:       o.CustomerPhone,
		Notes:               o.Notes.String,
		TotalAmount:         numericToDecimal(o.TotalAmount).StringFixed(2),
		Status:              o.Status,
		ScheduledPickupDate: timeOrNil(o.ScheduledPickupDate),
		PickedUpAt:          timeOrNil(o.PickedUpAt),
		Version:             o.Version,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int32     `json:"quantity"`
	Price     string    `json:"price"`
}

func dbOrderItemToResponse(it database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:        it.ID,
		ProductID: it.ProductID,
		Name:      it.Name,
		Quantity:  it.Quantity,
		Price:     numericToDecimal(it.Price).StringFixed(2),
	}
}

type paymentResponse struct {
	ID              uuid.UUID  `json:"id"`
	OrderID         uuid.UUID  `json:"order_id"`
	ProofUrl        string     `json:"proof_url"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
}

func dbPaymentToResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		ProofUrl:        p.ProofUrl,
		Status:          p.Status,
		RejectionReason: p.RejectionReason.String,
		CreatedAt:       p.CreatedAt,
		VerifiedAt:      timeOrNil(p.VerifiedAt),
	}
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Sizes       []string  `json:"sizes"`
	Colors      []string  `json:"colors"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func dbProductToResponse(p database.Product, images []database.ProductImage) productResponse {
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.Url
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description.String,
		Price:       numericToDecimal(p.Price).StringFixed(2),
		Category:    p.Category,
		Subcategory: p.Subcategory.String,
		Sizes:       p.Sizes,
		Colors:      p.Colors,
		Images:      urls,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type auditLogResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	AdminID    uuid.UUID `json:"admin_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	CreatedAt  time.Time `json:"created_at"`
}

func dbAuditLogToResponse(a database.AuditLog) auditLogResponse {
	return auditLogResponse{
		ID:         a.ID,
		OrderID:    a.OrderID,
		AdminID:    a.AdminID,
		Action:     a.Action,
		FromStatus: a.FromStatus,
		ToStatus:   a.ToStatus,
		CreatedAt:  a.CreatedAt,
	}
}
