package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/campusmerch/api/internal/cart"
	"github.com/campusmerch/api/internal/middleware"
	"github.com/campusmerch/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CheckoutHandler turns the selected cart lines into an order.
type CheckoutHandler struct {
	checkout *service.CheckoutService
	sessions *cart.Manager
}

func NewCheckoutHandler(checkout *service.CheckoutService, sessions *cart.Manager) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, sessions: sessions}
}

// RegisterRoutes registers the checkout endpoint. Expected to be
// mounted with Authenticate; only server-backed cart lines can be
// referenced by id.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
}

type checkoutRequest struct {
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
	Notes         string   `json:"notes"`
	ItemIDs       []string `json:"item_ids"`
}

type checkoutResponse struct {
	Success bool      `json:"success"`
	OrderID uuid.UUID `json:"order_id"`
	Amount  string    `json:"amount"`
}

// Checkout handles POST /checkout.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.checkout.Checkout(r.Context(), service.CheckoutRequest{
		UserID:        claims.UserID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		ItemIDs:       req.ItemIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingCustomer),
			errors.Is(err, service.ErrEmptySelection),
			errors.Is(err, service.ErrInvalidItemID):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrCartItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: checkout: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	// Refresh the client's engine so the removed lines and their stale
	// selection entries disappear from the session view.
	if clientKey := middleware.ClientKeyFromContext(r.Context()); clientKey != "" {
		if err := h.sessions.Session(clientKey).Cart.Initialize(r.Context(), claims.UserID); err != nil {
			log.Printf("ERROR: refresh cart after checkout: %v", err)
		}
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		Success: true,
		OrderID: result.Order.ID,
		Amount:  numericToDecimal(result.Order.TotalAmount).StringFixed(2),
	})
}
