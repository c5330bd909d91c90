package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/campusmerch/api/internal/cart"
	"github.com/campusmerch/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WishlistHandler mirrors the cart handler: client key scopes guests,
// an optional bearer token scopes signed-in customers.
type WishlistHandler struct {
	sessions *cart.Manager
}

func NewWishlistHandler(sessions *cart.Manager) *WishlistHandler {
	return &WishlistHandler{sessions: sessions}
}

// RegisterRoutes registers wishlist endpoints. Expected to be mounted
// with RequireClientKey and MaybeAuthenticate.
func (h *WishlistHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/toggle", h.Toggle)
	r.Delete("/{productId}", h.Remove)
}

type toggleWishlistRequest struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

func (h *WishlistHandler) wishlist(w http.ResponseWriter, r *http.Request) *cart.Wishlist {
	clientKey := middleware.ClientKeyFromContext(r.Context())

	userID := uuid.Nil
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		userID = claims.UserID
	}

	wl := h.sessions.Session(clientKey).Wishlist
	if err := wl.Initialize(r.Context(), userID); err != nil {
		log.Printf("ERROR: initialize wishlist: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil
	}
	return wl
}

// Get handles GET /wishlist.
func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	wl := h.wishlist(w, r)
	if wl == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": wl.Entries()})
}

// Toggle handles POST /wishlist/toggle: present becomes absent and vice
// versa; the response reports the resulting state.
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	wl := h.wishlist(w, r)
	if wl == nil {
		return
	}

	var req toggleWishlistRequest
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

	wishlisted, err := wl.Toggle(r.Context(), cart.WishlistEntry{
		ProductID:   productID,
		Name:        req.Name,
		Price:       price,
		Image:       req.Image,
		Category:    req.Category,
		Subcategory: req.Subcategory,
	})
	if err != nil {
		log.Printf("ERROR: toggle wishlist: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wishlisted": wishlisted,
		"items":      wl.Entries(),
	})
}

// Remove handles DELETE /wishlist/{productId}.
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	wl := h.wishlist(w, r)
	if wl == nil {
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	if err := wl.Remove(r.Context(), productID); err != nil {
		log.Printf("ERROR: remove wishlist entry: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": wl.Entries()})
}

// Clear handles DELETE /wishlist.
func (h *WishlistHandler) Clear(w http.ResponseWriter, r *http.Request) {
	wl := h.wishlist(w, r)
	if wl == nil {
		return
	}

	if err := wl.Clear(r.Context()); err != nil {
		log.Printf("ERROR: clear wishlist: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": wl.Entries()})
}
