package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/campusmerch/api/internal/service"
	"github.com/campusmerch/api/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxProofUploadBytes = 10 << 20

// PaymentHandler accepts payment proof uploads from customers. The
// upload is the only customer-driven order transition: it stores the
// file, creates a PENDING payment row, and moves the order to PENDING
// verification.
type PaymentHandler struct {
	lifecycle *service.LifecycleService
	uploads   storage.ObjectStore
}

func NewPaymentHandler(lifecycle *service.LifecycleService, uploads storage.ObjectStore) *PaymentHandler {
	return &PaymentHandler{lifecycle: lifecycle, uploads: uploads}
}

// RegisterRoutes registers the proof upload endpoint. Public: the order
// id acts as the upload token, matching the tracking endpoint.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{id}/payment-proof", h.UploadProof)
}

// UploadProof handles POST /orders/{id}/payment-proof (multipart form,
// field "proof").
func (h *PaymentHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if err := r.ParseMultipartForm(maxProofUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("proof")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "proof file is required"})
		return
	}
	defer file.Close()

	url, err := h.uploads.Put(r.Context(), "proofs", header.Filename, file)
	if err != nil {
		log.Printf("ERROR: store payment proof: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	result, err := h.lifecycle.UploadProof(r.Context(), service.UploadProofRequest{
		OrderID:  orderID,
		ProofURL: url,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProofRequired):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order is not awaiting payment"})
		default:
			log.Printf("ERROR: upload payment proof: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"order":   dbOrderToResponse(result.Order),
		"payment": dbPaymentToResponse(result.Payment),
	})
}
