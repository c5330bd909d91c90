package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/campusmerch/api/internal/cart"
	"github.com/campusmerch/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartHandler serves one unified cart regardless of auth state. Every
// request re-initializes the client's engine with the current user so
// login/logout edges are detected even when the auth endpoints never saw
// this client key.
type CartHandler struct {
	sessions *cart.Manager
}

func NewCartHandler(sessions *cart.Manager) *CartHandler {
	return &CartHandler{sessions: sessions}
}

// RegisterRoutes registers cart endpoints. Expected to be mounted with
// RequireClientKey and MaybeAuthenticate.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{id}", h.UpdateQuantity)
	r.Delete("/items/{id}", h.RemoveItem)
	r.Post("/selection/{id}", h.ToggleSelection)
	r.Post("/selection", h.SelectAll)
	r.Delete("/selection", h.DeselectAll)
}

// --- Request / Response types ---

type addCartItemRequest struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Image       string `json:"image"`
	Quantity    int32  `json:"quantity"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

type updateQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

type cartResponse struct {
	Items         []cart.Item `json:"items"`
	SelectedIDs   []string    `json:"selected_ids"`
	SelectedCount int32       `json:"selected_count"`
	SelectedTotal string      `json:"selected_total"`
}

// --- Handlers ---

// engine resolves the caller's cart engine, initialized for the current
// auth state. A guest carries only the client key; a signed-in customer
// additionally carries a bearer token.
func (h *CartHandler) engine(w http.ResponseWriter, r *http.Request) *cart.Engine {
	clientKey := middleware.ClientKeyFromContext(r.Context())

	userID := uuid.Nil
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		userID = claims.UserID
	}

	e := h.sessions.Session(clientKey).Cart
	if err := e.Initialize(r.Context(), userID); err != nil {
		log.Printf("ERROR: initialize cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil
	}
	return e
}

func (h *CartHandler) respond(w http.ResponseWriter, e *cart.Engine) {
	writeJSON(w, http.StatusOK, cartResponse{
		Items:         e.Items(),
		SelectedIDs:   e.SelectedIDs(),
		SelectedCount: e.SelectedCount(),
		SelectedTotal: e.SelectedTotal().StringFixed(2),
	})
}

// Get handles GET /cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}
	h.respond(w, e)
}

// AddItem handles POST /cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative number"})
		return
	}

	_, err = e.AddItem(r.Context(), cart.Item{
		ProductID:   productID,
		Name:        req.Name,
		Price:       price,
		Image:       req.Image,
		Quantity:    req.Quantity,
		Size:        req.Size,
		Color:       req.Color,
		Category:    req.Category,
		Subcategory: req.Subcategory,
	})
	if err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
			return
		}
		log.Printf("ERROR: add cart item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respond(w, e)
}

// UpdateQuantity handles PATCH /cart/items/{id}. A quantity of zero or
// less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := e.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "cart item not found"})
			return
		}
		log.Printf("ERROR: update cart quantity: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respond(w, e)
}

// RemoveItem handles DELETE /cart/items/{id}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}

	if err := e.RemoveItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "cart item not found"})
			return
		}
		log.Printf("ERROR: remove cart item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respond(w, e)
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}

	if err := e.ClearCart(r.Context()); err != nil {
		log.Printf("ERROR: clear cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respond(w, e)
}

// ToggleSelection handles POST /cart/selection/{id}.
func (h *CartHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}
	e.ToggleSelection(chi.URLParam(r, "id"))
	h.respond(w, e)
}

// SelectAll handles POST /cart/selection.
func (h *CartHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}
	e.SelectAll()
	h.respond(w, e)
}

// DeselectAll handles DELETE /cart/selection.
func (h *CartHandler) DeselectAll(w http.ResponseWriter, r *http.Request) {
	e := h.engine(w, r)
	if e == nil {
		return
	}
	e.DeselectAll()
	h.respond(w, e)
}
