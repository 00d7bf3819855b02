package services

import (
	"context"
	"log"

	"ticketmarket/internal/models"
)

// Notifier delivers post-purchase confirmations. Delivery runs after
// the checkout transaction commits and failures never affect the sale.
type Notifier interface {
	PurchaseConfirmed(ctx context.Context, userID int, payment *models.Payment, tickets []*models.Ticket) error
	RefundConfirmed(ctx context.Context, userID int, refund *models.Refund) error
}

// LogNotifier writes confirmations to the process log. It stands in
// for an email or push provider in development.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) PurchaseConfirmed(ctx context.Context, userID int, payment *models.Payment, tickets []*models.Ticket) error {
	log.Printf("purchase confirmed: user=%d payment=%s amount=%d tickets=%d",
		userID, payment.Reference, payment.Amount, len(tickets))
	return nil
}

func (n *LogNotifier) RefundConfirmed(ctx context.Context, userID int, refund *models.Refund) error {
	log.Printf("refund confirmed: user=%d payment=%d amount=%d", userID, refund.PaymentID, refund.Amount)
	return nil
}
