package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusmerch/api/internal/auth"
	"github.com/campusmerch/api/internal/cart"
	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/enum"
	"github.com/campusmerch/api/internal/handler"
	"github.com/campusmerch/api/internal/kv"
	"github.com/campusmerch/api/internal/middleware"
	"github.com/campusmerch/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type mockCheckoutStore struct {
	listForUpdateFn   func(ctx context.Context, arg database.ListCartItemsByIDsForUpdateParams) ([]database.CartItem, error)
	createOrderFn     func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	deletedItemIDs    []uuid.UUID
}

func (m *mockCheckoutStore) ListCartItemsByIDsForUpdate(ctx context.Context, arg database.ListCartItemsByIDsForUpdateParams) ([]database.CartItem, error) {
	if m.listForUpdateFn != nil {
		return m.listForUpdateFn(ctx, arg)
	}
	return []database.CartItem{}, nil
}

func (m *mockCheckoutStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, arg)
	}
	return database.Order{ID: uuid.New(), TotalAmount: arg.TotalAmount, Status: arg.Status, Version: 1}, nil
}

func (m *mockCheckoutStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if m.createOrderItemFn != nil {
		return m.createOrderItemFn(ctx, arg)
	}
	return database.OrderItem{ID: uuid.New(), OrderID: arg.OrderID, ProductID: arg.ProductID, Name: arg.Name, Quantity: arg.Quantity, Price: arg.Price}, nil
}

func (m *mockCheckoutStore) DeleteCartItem(_ context.Context, arg database.DeleteCartItemParams) error {
	m.deletedItemIDs = append(m.deletedItemIDs, arg.ID)
	return nil
}

func setupCheckoutRouter(store *mockCheckoutStore) *chi.Mux {
	checkout := service.NewCheckoutService(&mockPool{}, func(db database.DBTX) service.CheckoutStore {
		return store
	})
	sessions := cart.NewManager(kv.NewMemoryStore(), &stubCartDB{}, &stubWishlistDB{})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Use(middleware.RequireClientKey)
		handler.NewCheckoutHandler(checkout, sessions).RegisterRoutes(r)
	})
	return r
}

func doCheckoutRequest(t *testing.T, router http.Handler, body interface{}, userID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testSecret, userID, enum.UserRoleCustomer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest("POST", "/checkout", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Client-Key", "checkout-client")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCheckout_PlacesOrderFromSelectedLines(t *testing.T) {
	userID := uuid.New()
	lineA := uuid.New()
	lineB := uuid.New()

	store := &mockCheckoutStore{
		listForUpdateFn: func(_ context.Context, arg database.ListCartItemsByIDsForUpdateParams) ([]database.CartItem, error) {
			if arg.UserID != userID {
				t.Errorf("lock user: got %v, want %v", arg.UserID, userID)
			}
			return []database.CartItem{
				{ID: lineA, UserID: userID, ProductID: uuid.New(), Name: "Classic Tee", Price: testNumeric(t, "18.50"), Quantity: 2, Size: "M"},
				{ID: lineB, UserID: userID, ProductID: uuid.New(), Name: "Campus Hoodie", Price: testNumeric(t, "45.00"), Quantity: 1},
			}, nil
		},
	}
	router := setupCheckoutRouter(store)

	rr := doCheckoutRequest(t, router, map[string]interface{}{
		"customer_name":  "Jamie Reyes",
		"customer_email": "jamie@test.com",
		"customer_phone": "555-0100",
		"item_ids":       []string{lineA.String(), lineB.String()},
	}, userID)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["success"] != true {
		t.Errorf("success: got %v, want true", resp["success"])
	}
	if resp["amount"] != "82.00" {
		t.Errorf("amount: got %v, want 82.00", resp["amount"])
	}

	// Only the selected lines are removed from the cart.
	if len(store.deletedItemIDs) != 2 {
		t.Fatalf("deleted lines: got %d, want 2", len(store.deletedItemIDs))
	}
}

func TestCheckout_MissingCustomerDetails(t *testing.T) {
	router := setupCheckoutRouter(&mockCheckoutStore{})

	rr := doCheckoutRequest(t, router, map[string]interface{}{
		"customer_name": "Jamie Reyes",
		"item_ids":      []string{uuid.New().String()},
	}, uuid.New())

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCheckout_MissingSelectedLine(t *testing.T) {
	userID := uuid.New()
	store := &mockCheckoutStore{
		listForUpdateFn: func(_ context.Context, _ database.ListCartItemsByIDsForUpdateParams) ([]database.CartItem, error) {
			return []database.CartItem{}, nil
		},
	}
	router := setupCheckoutRouter(store)

	rr := doCheckoutRequest(t, router, map[string]interface{}{
		"customer_name":  "Jamie Reyes",
		"customer_email": "jamie@test.com",
		"customer_phone": "555-0100",
		"item_ids":       []string{uuid.New().String()},
	}, userID)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if len(store.deletedItemIDs) != 0 {
		t.Errorf("expected no lines removed, got %d", len(store.deletedItemIDs))
	}
}

func TestCheckout_RequiresAuth(t *testing.T) {
	router := setupCheckoutRouter(&mockCheckoutStore{})

	req := httptest.NewRequest("POST", "/checkout", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Client-Key", "checkout-client")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
