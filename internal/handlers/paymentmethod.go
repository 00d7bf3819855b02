package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ticketmarket/internal/middleware"
	"ticketmarket/internal/models"
	"ticketmarket/internal/services"
)

// PaymentMethodHandler handles saved card requests
type PaymentMethodHandler struct {
	methodService *services.PaymentMethodService
}

// NewPaymentMethodHandler creates a new payment method handler
func NewPaymentMethodHandler(methodService *services.PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{methodService: methodService}
}

// LinkCard verifies a card with the gateway and saves it for the caller
func (h *PaymentMethodHandler) LinkCard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var card models.Card
	if err := decodeJSON(r, &card); err != nil {
		writeError(w, err)
		return
	}

	method, err := h.methodService.LinkCard(r.Context(), userID, &card)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, method)
}

// List returns the caller's saved payment methods
func (h *PaymentMethodHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	methods, err := h.methodService.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, methods)
}

// Remove deletes one of the caller's saved payment methods
func (h *PaymentMethodHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	methodID, err := strconv.Atoi(chi.URLParam(r, "methodID"))
	if err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	if err := h.methodService.Remove(r.Context(), userID, methodID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
