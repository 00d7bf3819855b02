package models

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus represents the status of a minted ticket
type TicketStatus string

const (
	TicketActive   TicketStatus = "active"
	TicketRefunded TicketStatus = "refunded"
)

// TicketCodeLength is the fixed length of a ticket's unique entry code
const TicketCodeLength = 10

// TicketType represents a priced inventory bucket for an event
type TicketType struct {
	ID            int       `json:"id" db:"id"`
	EventID       int       `json:"event_id" db:"event_id"`
	Label         string    `json:"label" db:"label"`
	Price         int       `json:"price" db:"price"` // Price in cents
	QuantityTotal int       `json:"quantity_total" db:"quantity_total"`
	QuantityLeft  int       `json:"quantity_left" db:"quantity_left"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Ticket represents one purchased inventory unit
type Ticket struct {
	ID           int          `json:"id" db:"id"`
	EventID      int          `json:"event_id" db:"event_id"`
	UserID       int          `json:"user_id" db:"user_id"`
	TicketTypeID int          `json:"ticket_type_id" db:"ticket_type_id"`
	Code         string       `json:"code" db:"code"`
	Price        int          `json:"price" db:"price"` // Price in cents
	Status       TicketStatus `json:"status" db:"status"`
	PurchasedAt  time.Time    `json:"purchased_at" db:"purchased_at"`
}

// TicketTypeCreateRequest represents the data needed to create a ticket type
type TicketTypeCreateRequest struct {
	EventID  int    `json:"event_id"`
	Label    string `json:"label"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

// Validate validates ticket type creation data
func (req *TicketTypeCreateRequest) Validate() error {
	if req.EventID <= 0 {
		return fmt.Errorf("event is required: %w", ErrInvalidInput)
	}

	if err := validateTicketTypeLabel(req.Label); err != nil {
		return err
	}

	if err := validateTicketTypePrice(req.Price); err != nil {
		return err
	}

	if err := validateTicketTypeQuantity(req.Quantity); err != nil {
		return err
	}

	return nil
}

// validateTicketTypeLabel validates a ticket type label
func validateTicketTypeLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("ticket type label is required: %w", ErrInvalidInput)
	}

	if len(label) > 100 {
		return fmt.Errorf("ticket type label must be less than 100 characters: %w", ErrInvalidInput)
	}

	return nil
}

// validateTicketTypePrice validates a ticket type price
func validateTicketTypePrice(price int) error {
	if price <= 0 {
		return fmt.Errorf("ticket price must be greater than 0: %w", ErrInvalidInput)
	}

	// Maximum price of $10,000 (1,000,000 cents)
	if price > 1000000 {
		return fmt.Errorf("ticket price cannot exceed $10,000: %w", ErrInvalidInput)
	}

	return nil
}

// validateTicketTypeQuantity validates a ticket type quantity
func validateTicketTypeQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("ticket quantity must be greater than 0: %w", ErrInvalidInput)
	}

	// Maximum quantity of 100,000 tickets per type
	if quantity > 100000 {
		return fmt.Errorf("ticket quantity cannot exceed 100,000: %w", ErrInvalidInput)
	}

	return nil
}

// IsSoldOut returns true if no inventory remains
func (tt *TicketType) IsSoldOut() bool {
	return tt.QuantityLeft <= 0
}

// HasStock returns true if at least qty units remain
func (tt *TicketType) HasStock(qty int) bool {
	return qty > 0 && qty <= tt.QuantityLeft
}

// Sold returns the number of units consumed so far
func (tt *TicketType) Sold() int {
	sold := tt.QuantityTotal - tt.QuantityLeft
	if sold < 0 {
		return 0
	}
	return sold
}

// PriceInCurrency returns the price in the main currency unit as a float
func (tt *TicketType) PriceInCurrency() float64 {
	return float64(tt.Price) / 100.0
}

// Validate validates the ticket data
func (t *Ticket) Validate() error {
	if len(t.Code) != TicketCodeLength {
		return fmt.Errorf("ticket code must be exactly 10 characters: %w", ErrInvalidInput)
	}

	switch t.Status {
	case TicketActive, TicketRefunded:
	default:
		return fmt.Errorf("invalid ticket status: %w", ErrInvalidInput)
	}

	return nil
}

// IsActive returns true if the ticket is active
func (t *Ticket) IsActive() bool {
	return t.Status == TicketActive
}

// CanBeRefunded returns true if the ticket can still be refunded
func (t *Ticket) CanBeRefunded() bool {
	return t.Status == TicketActive
}
