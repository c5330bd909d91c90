package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusmerch/api/internal/database"
	"github.com/campusmerch/api/internal/enum"
	"github.com/campusmerch/api/internal/handler"
	"github.com/campusmerch/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// mockObjectStore records uploads and returns a fixed URL scheme.
type mockObjectStore struct {
	prefixes  []string
	filenames []string
	contents  [][]byte
	err       error
}

func (m *mockObjectStore) Put(_ context.Context, prefix, filename string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.prefixes = append(m.prefixes, prefix)
	m.filenames = append(m.filenames, filename)
	m.contents = append(m.contents, data)
	return "http://test/uploads/" + prefix + "/" + filename, nil
}

func setupPaymentRouter(ls service.LifecycleStore, uploads *mockObjectStore) *chi.Mux {
	lifecycle := service.NewLifecycleService(&mockPool{}, func(db database.DBTX) service.LifecycleStore {
		return ls
	})
	h := handler.NewPaymentHandler(lifecycle, uploads)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func multipartProofRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadProof_MovesOrderToPending(t *testing.T) {
	orderID := uuid.New()
	var createdProofURL string

	ls := &mockLifecycleStore{
		getOrderForUpdateFn: func(_ context.Context, _ uuid.UUID) (database.Order, error) {
			return testOrder(t, orderID, enum.OrderStatusAwaitingPayment, 1), nil
		},
		createPaymentFn: func(_ context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
			createdProofURL = arg.ProofUrl
			return database.Payment{ID: uuid.New(), OrderID: orderID, ProofUrl: arg.ProofUrl, Status: arg.Status}, nil
		},
		markPaymentUploadedFn: func(_ context.Context, arg database.MarkPaymentUploadedParams) (database.Order, error) {
			return testOrder(t, orderID, arg.Status, 2), nil
		},
	}
	uploads := &mockObjectStore{}
	router := setupPaymentRouter(ls, uploads)

	req := multipartProofRequest(t, "/orders/"+orderID.String()+"/payment-proof", "proof", "transfer.jpg", []byte("fake-image-bytes"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	if len(uploads.prefixes) != 1 || uploads.prefixes[0] != "proofs" {
		t.Errorf("upload prefix: got %v, want [proofs]", uploads.prefixes)
	}
	if string(uploads.contents[0]) != "fake-image-bytes" {
		t.Error("uploaded content does not match submitted file")
	}
	if createdProofURL != "http://test/uploads/proofs/transfer.jpg" {
		t.Errorf("proof url: got %q", createdProofURL)
	}

	resp := decodeResponse(t, rr)
	order, ok := resp["order"].(map[string]interface{})
	if !ok {
		t.Fatal("expected order object in response")
	}
	if order["status"] != "PENDING" {
		t.Errorf("order status: got %v, want PENDING", order["status"])
	}
	payment, ok := resp["payment"].(map[string]interface{})
	if !ok {
		t.Fatal("expected payment object in response")
	}
	if payment["status"] != "PENDING" {
		t.Errorf("payment status: got %v, want PENDING", payment["status"])
	}
}

func TestUploadProof_MissingFile(t *testing.T) {
	router := setupPaymentRouter(&mockLifecycleStore{}, &mockObjectStore{})

	req := multipartProofRequest(t, "/orders/"+uuid.New().String()+"/payment-proof", "wrong-field", "transfer.jpg", []byte("x"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUploadProof_OrderNotFound(t *testing.T) {
	router := setupPaymentRouter(&mockLifecycleStore{}, &mockObjectStore{})

	req := multipartProofRequest(t, "/orders/"+uuid.New().String()+"/payment-proof", "proof", "transfer.jpg", []byte("x"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUploadProof_WrongOrderState(t *testing.T) {
	orderID := uuid.New()
	ls := &mockLifecycleStore{
		getOrderForUpdateFn: func(_ context.Context, _ uuid.UUID) (database.Order, error) {
			return testOrder(t, orderID, enum.OrderStatusReadyForPickup, 3), nil
		},
	}
	router := setupPaymentRouter(ls, &mockObjectStore{})

	req := multipartProofRequest(t, "/orders/"+orderID.String()+"/payment-proof", "proof", "transfer.jpg", []byte("x"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}
