package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ticketmarket/internal/middleware"
	"ticketmarket/internal/models"
	"ticketmarket/internal/services"
)

// CheckoutHandler handles purchase and refund requests
type CheckoutHandler struct {
	checkoutService *services.CheckoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

type checkoutRequest struct {
	PaymentMethodID int    `json:"payment_method_id"`
	CVV             string `json:"cvv"`

	// Buy-now fields, ignored on the cart endpoint
	TicketTypeID int `json:"ticket_type_id"`
	Quantity     int `json:"quantity"`
}

// Checkout purchases the caller's entire cart
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.checkoutService.Checkout(r.Context(), userID, req.PaymentMethodID, req.CVV)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// CheckoutNow purchases one ticket type directly, bypassing the cart
func (h *CheckoutHandler) CheckoutNow(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.checkoutService.CheckoutNow(r.Context(), userID, req.TicketTypeID, req.Quantity, req.PaymentMethodID, req.CVV)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// RefundTicket refunds one purchased ticket. Only the organizer of
// the ticket's event may do this.
func (h *CheckoutHandler) RefundTicket(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserIDFromContext(r.Context())

	ticketID, err := strconv.Atoi(chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	refund, err := h.checkoutService.RefundTicket(r.Context(), callerID, ticketID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, refund)
}
