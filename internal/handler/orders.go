package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/enum"
	"github.com/campusmerch/api/internal/middleware"
	"github.com/campusmerch/api/internal/service"
	"github.com/campusmerch/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderStore defines the read-side DB methods the order handlers need.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersByCustomerEmail(ctx context.Context, email string) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	ListAuditLogsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.AuditLog, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// OrderHandler serves the admin order workflow plus customer-facing
// order tracking. Admin transitions go through the lifecycle service;
// every successful transition is broadcast to connected dashboards.
type OrderHandler struct {
	store     OrderStore
	lifecycle *service.LifecycleService
	hub       *ws.Hub
}

func NewOrderHandler(store OrderStore, lifecycle *service.LifecycleService, hub *ws.Hub) *OrderHandler {
	return &OrderHandler{store: store, lifecycle: lifecycle, hub: hub}
}

// RegisterAdminRoutes registers order management endpoints. Expected to
// be mounted with Authenticate and RequireRole(ADMIN).
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.GetDetail)
	r.Post("/{id}/accept-payment", h.AcceptPayment)
	r.Post("/{id}/reject-payment", h.RejectPayment)
	r.Post("/{id}/pickup", h.MarkPickedUp)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/override", h.Override)
}

// RegisterCustomerRoutes registers the customer-facing tracking
// endpoints. GET /orders/{id} is public (the order id is the tracking
// token); GET /my-orders needs a bearer token.
func (h *OrderHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.Track)
}

// RegisterMyOrdersRoute registers GET /my-orders. Expected to be
// mounted with Authenticate.
func (h *OrderHandler) RegisterMyOrdersRoute(r chi.Router) {
	r.Get("/my-orders", h.MyOrders)
}

// --- Request types ---

type acceptPaymentRequest struct {
	ExpectedVersion int32  `json:"expected_version"`
	PickupDate      string `json:"pickup_date"`
}

type rejectPaymentRequest struct {
	ExpectedVersion int32  `json:"expected_version"`
	Reason          string `json:"reason"`
}

type transitionRequest struct {
	ExpectedVersion int32 `json:"expected_version"`
}

type overrideRequest struct {
	ExpectedVersion int32  `json:"expected_version"`
	Status          string `json:"status"`
}

type orderDetailResponse struct {
	Order    orderResponse       `json:"order"`
	Items    []orderItemResponse `json:"items"`
	Payments []paymentResponse   `json:"payments"`
	AuditLog []auditLogResponse  `json:"audit_log"`
}

// --- Admin handlers ---

// List handles GET /admin/orders with optional status and date filters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := int32(50)
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 200"})
			return
		}
		limit = int32(n)
	}

	offset := int32(0)
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be >= 0"})
			return
		}
		offset = int32(n)
	}

	startDate, err := parseDateParam(q.Get("start_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date must be YYYY-MM-DD"})
		return
	}
	endDate, err := parseDateParam(q.Get("end_date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date must be YYYY-MM-DD"})
		return
	}
	if endDate.Valid {
		// End date is inclusive; the query uses created_at < end.
		endDate.Time = endDate.Time.AddDate(0, 0, 1)
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Status:    q.Get("status"),
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, dbOrderToResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// GetDetail handles GET /admin/orders/{id}: the order plus its items,
// full payment history, and audit trail.
func (h *OrderHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	auditLogs, err := h.store.ListAuditLogsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list audit logs: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderDetailResponse{
		Order:    dbOrderToResponse(order),
		Items:    make([]orderItemResponse, 0, len(items)),
		Payments: make([]paymentResponse, 0, len(payments)),
		AuditLog: make([]auditLogResponse, 0, len(auditLogs)),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, dbOrderItemToResponse(it))
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, dbPaymentToResponse(p))
	}
	for _, a := range auditLogs {
		resp.AuditLog = append(resp.AuditLog, dbAuditLogToResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AcceptPayment handles POST /admin/orders/{id}/accept-payment.
func (h *OrderHandler) AcceptPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req acceptPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var pickupDate time.Time
	if req.PickupDate != "" {
		var err error
		pickupDate, err = time.Parse("2006-01-02", req.PickupDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pickup_date must be YYYY-MM-DD"})
			return
		}
	}

	order, err := h.lifecycle.AcceptPayment(r.Context(), service.AcceptPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: req.ExpectedVersion,
		PickupDate:      pickupDate,
	})
	if err != nil {
		h.writeLifecycleError(w, err, "accept payment")
		return
	}

	h.broadcastOrderUpdated(order)
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": dbOrderToResponse(*order)})
}

// RejectPayment handles POST /admin/orders/{id}/reject-payment.
func (h *OrderHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req rejectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.lifecycle.RejectPayment(r.Context(), service.RejectPaymentRequest{
		OrderID:         orderID,
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
	})
	if err != nil {
		h.writeLifecycleError(w, err, "reject payment")
		return
	}

	h.broadcastOrderUpdated(order)
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": dbOrderToResponse(*order)})
}

// MarkPickedUp handles POST /admin/orders/{id}/pickup.
func (h *OrderHandler) MarkPickedUp(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.lifecycle.MarkPickedUp(r.Context(), service.MarkPickedUpRequest{
		OrderID:         orderID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeLifecycleError(w, err, "mark picked up")
		return
	}

	h.broadcastOrderUpdated(order)
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": dbOrderToResponse(*order)})
}

// Cancel handles POST /admin/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.lifecycle.Cancel(r.Context(), service.CancelRequest{
		OrderID:         orderID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeLifecycleError(w, err, "cancel order")
		return
	}

	h.broadcastOrderUpdated(order)
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": dbOrderToResponse(*order)})
}

// Override handles POST /admin/orders/{id}/override: a direct status
// write that skips the transition guards and records an audit row.
func (h *OrderHandler) Override(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.lifecycle.Override(r.Context(), service.OverrideRequest{
		OrderID:         orderID,
		ExpectedVersion: req.ExpectedVersion,
		ToStatus:        req.Status,
		AdminID:         claims.UserID,
	})
	if err != nil {
		h.writeLifecycleError(w, err, "override status")
		return
	}

	h.broadcastOrderUpdated(order)
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": dbOrderToResponse(*order)})
}

// --- Customer handlers ---

// trackResponse omits the admin-only fields (version, audit trail);
// the latest payment state is enough for the customer to act on.
type trackResponse struct {
	Order    orderResponse       `json:"order"`
	Items    []orderItemResponse `json:"items"`
	Payment  *paymentResponse    `json:"payment,omitempty"`
	Rejected bool                `json:"payment_rejected"`
}

// Track handles GET /orders/{id}: public order tracking by id.
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := trackResponse{
		Order: dbOrderToResponse(order),
		Items: make([]orderItemResponse, 0, len(items)),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, dbOrderItemToResponse(it))
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if len(payments) > 0 {
		latest := dbPaymentToResponse(payments[0])
		resp.Payment = &latest
		resp.Rejected = payments[0].Status == enum.PaymentStatusRejected
	}

	writeJSON(w, http.StatusOK, resp)
}

// MyOrders handles GET /my-orders: the signed-in customer's order
// history, matched by account email.
func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: get user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orders, err := h.store.ListOrdersByCustomerEmail(r.Context(), user.Email)
	if err != nil {
		log.Printf("ERROR: list orders by email: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, dbOrderToResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// --- Helpers ---

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return orderID, true
}

func parseDateParam(s string) (pgtype.Timestamptz, error) {
	if s == "" {
		return pgtype.Timestamptz{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Timestamptz{}, err
	}
	return pgtype.Timestamptz{Time: t, Valid: true}, nil
}

// writeLifecycleError maps service errors to HTTP codes: validation
// failures are 400, missing orders 404, and anything the caller can fix
// by re-reading the order (stale version, wrong state) is 409.
func (h *OrderHandler) writeLifecycleError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrPickupDateRequired),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrUnknownStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrVersionConflict),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrTerminalStatus),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrPaymentNotPending):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *OrderHandler) broadcastOrderUpdated(order *database.Order) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(dbOrderToResponse(*order))
	if err != nil {
		log.Printf("ERROR: marshal order event: %v", err)
		return
	}
	h.hub.Broadcast(ws.Event{Type: "order.updated", Payload: payload})
}
