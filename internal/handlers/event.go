package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ticketmarket/internal/middleware"
	"ticketmarket/internal/models"
	"ticketmarket/internal/services"
)

// EventHandler handles event and inventory management requests
type EventHandler struct {
	eventService *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// CreateEvent creates a new event owned by the caller
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	organizerID := middleware.GetUserIDFromContext(r.Context())

	var req models.EventCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.OrganizerID = organizerID

	event, err := h.eventService.CreateEvent(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// GetEvent returns an event with its ticket types
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.Atoi(chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	event, ticketTypes, err := h.eventService.GetEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event":        event,
		"ticket_types": ticketTypes,
	})
}

// ListMyEvents returns the caller's events
func (h *EventHandler) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	organizerID := middleware.GetUserIDFromContext(r.Context())

	events, err := h.eventService.ListByOrganizer(r.Context(), organizerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// CreateTicketType adds a ticket type to one of the caller's events
func (h *EventHandler) CreateTicketType(w http.ResponseWriter, r *http.Request) {
	organizerID := middleware.GetUserIDFromContext(r.Context())

	var req models.TicketTypeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ticketType, err := h.eventService.CreateTicketType(r.Context(), organizerID, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ticketType)
}

type increaseQuantityRequest struct {
	Delta int `json:"delta"`
}

// IncreaseQuantity grows a ticket type's capacity
func (h *EventHandler) IncreaseQuantity(w http.ResponseWriter, r *http.Request) {
	organizerID := middleware.GetUserIDFromContext(r.Context())

	ticketTypeID, err := strconv.Atoi(chi.URLParam(r, "ticketTypeID"))
	if err != nil {
		writeError(w, models.ErrInvalidInput)
		return
	}

	var req increaseQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ticketType, err := h.eventService.IncreaseQuantity(r.Context(), organizerID, ticketTypeID, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ticketType)
}
