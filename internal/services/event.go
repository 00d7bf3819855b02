package services

import (
	"context"
	"fmt"

	"ticketmarket/internal/models"
	"ticketmarket/internal/repositories"
)

// EventService manages events and their ticket inventory
type EventService struct {
	eventRepo     *repositories.EventRepository
	inventoryRepo *repositories.InventoryRepository
}

// NewEventService creates a new event service
func NewEventService(eventRepo *repositories.EventRepository, inventoryRepo *repositories.InventoryRepository) *EventService {
	return &EventService{
		eventRepo:     eventRepo,
		inventoryRepo: inventoryRepo,
	}
}

// CreateEvent creates a new event for an organizer
func (s *EventService) CreateEvent(ctx context.Context, req *models.EventCreateRequest) (*models.Event, error) {
	return s.eventRepo.Create(ctx, req)
}

// GetEvent returns an event with its ticket types
func (s *EventService) GetEvent(ctx context.Context, id int) (*models.Event, []*models.TicketType, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ticketTypes, err := s.inventoryRepo.GetTicketTypesByEvent(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return event, ticketTypes, nil
}

// ListByOrganizer returns an organizer's events
func (s *EventService) ListByOrganizer(ctx context.Context, organizerID int) ([]*models.Event, error) {
	return s.eventRepo.ListByOrganizer(ctx, organizerID)
}

// CreateTicketType adds a ticket type to an event the organizer owns
func (s *EventService) CreateTicketType(ctx context.Context, organizerID int, req *models.TicketTypeCreateRequest) (*models.TicketType, error) {
	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, fmt.Errorf("event %d: %w", req.EventID, models.ErrNotFound)
	}

	return s.inventoryRepo.CreateTicketType(ctx, req)
}

// IncreaseQuantity grows a ticket type's capacity. Capacity never
// shrinks; sold tickets always stay covered.
func (s *EventService) IncreaseQuantity(ctx context.Context, organizerID, ticketTypeID, delta int) (*models.TicketType, error) {
	ticketType, err := s.inventoryRepo.GetTicketTypeByID(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, ticketType.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, fmt.Errorf("ticket type %d: %w", ticketTypeID, models.ErrNotFound)
	}

	return s.inventoryRepo.IncreaseQuantity(ctx, ticketTypeID, delta)
}
