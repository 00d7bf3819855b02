package services

import (
	"context"

	"ticketmarket/internal/models"
	"ticketmarket/internal/repositories"
)

// TicketService serves ticket lookups for wallets and door scanners
type TicketService struct {
	paymentRepo *repositories.PaymentRepository
}

// NewTicketService creates a new ticket service
func NewTicketService(paymentRepo *repositories.PaymentRepository) *TicketService {
	return &TicketService{paymentRepo: paymentRepo}
}

// GetByCode resolves the ticket behind an entry code
func (s *TicketService) GetByCode(ctx context.Context, code string) (*models.Ticket, error) {
	return s.paymentRepo.GetTicketByCode(ctx, code)
}

// ListByUser returns a user's tickets, newest first
func (s *TicketService) ListByUser(ctx context.Context, userID, limit, offset int) ([]*models.Ticket, error) {
	return s.paymentRepo.ListTicketsByUser(ctx, userID, limit, offset)
}
