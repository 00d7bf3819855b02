package handlers

import (
	"net/http"

	"ticketmarket/internal/middleware"
	"ticketmarket/internal/services"
)

// CartHandler handles shopping cart requests
type CartHandler struct {
	cartService *services.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *services.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

type cartItemRequest struct {
	TicketTypeID int `json:"ticket_type_id"`
	Quantity     int `json:"quantity"`
}

// AddItem adds tickets to the caller's cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	line, err := h.cartService.AddItem(r.Context(), userID, req.TicketTypeID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, line)
}

// SetQuantity overwrites one line's quantity; zero removes it
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.cartService.SetQuantity(r.Context(), userID, req.TicketTypeID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// View returns the cart with dead lines pruned and the current total
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	view, err := h.cartService.View(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cart":        view.Cart,
		"lines":       view.Lines,
		"total_cents": view.TotalCents(),
	})
}

// Clear empties the caller's cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	if err := h.cartService.Clear(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
