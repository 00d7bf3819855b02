package services

import (
	"context"

	"ticketmarket/internal/models"
	"ticketmarket/internal/repositories"
)

// PaymentMethodService links verified cards to users. The card itself
// stays with the gateway; only its account id, fingerprint and last
// four digits are stored locally.
type PaymentMethodService struct {
	methodRepo *repositories.PaymentMethodRepository
	gateway    PaymentGateway
}

// NewPaymentMethodService creates a new payment method service
func NewPaymentMethodService(methodRepo *repositories.PaymentMethodRepository, gateway PaymentGateway) *PaymentMethodService {
	return &PaymentMethodService{
		methodRepo: methodRepo,
		gateway:    gateway,
	}
}

// LinkCard verifies the card with the gateway and stores it for the
// user. Linking the same card twice returns a conflict.
func (s *PaymentMethodService) LinkCard(ctx context.Context, userID int, card *models.Card) (*models.PaymentMethod, error) {
	accountID, err := s.gateway.Verify(ctx, card)
	if err != nil {
		return nil, err
	}

	return s.methodRepo.Create(ctx, &models.PaymentMethod{
		UserID:           userID,
		GatewayAccountID: accountID,
		CardFingerprint:  Fingerprint(card),
		LastFour:         card.LastFour(),
	})
}

// List returns the user's saved payment methods
func (s *PaymentMethodService) List(ctx context.Context, userID int) ([]*models.PaymentMethod, error) {
	return s.methodRepo.ListByUser(ctx, userID)
}

// Remove deletes one of the user's saved payment methods
func (s *PaymentMethodService) Remove(ctx context.Context, userID, methodID int) error {
	return s.methodRepo.Delete(ctx, methodID, userID)
}
