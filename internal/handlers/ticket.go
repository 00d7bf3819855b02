package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ticketmarket/internal/middleware"
	"ticketmarket/internal/services"
)

// TicketHandler handles ticket wallet and lookup requests
type TicketHandler struct {
	ticketService *services.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// ListMine returns the caller's tickets
func (h *TicketHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tickets, err := h.ticketService.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tickets)
}

// GetByCode resolves a ticket from its entry code, for door scanners
func (h *TicketHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	ticket, err := h.ticketService.GetByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}
