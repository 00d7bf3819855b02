package models

import "time"

// Cart represents a user's shopping cart. Exactly one exists per user,
// created lazily on first access and never deleted, only emptied.
type Cart struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CartLine represents a pending quantity of one ticket type in a cart.
// UnitPrice is snapshotted at add-time and deliberately does not track
// later price edits on the ticket type.
type CartLine struct {
	ID           int       `json:"id" db:"id"`
	CartID       int       `json:"cart_id" db:"cart_id"`
	TicketTypeID int       `json:"ticket_type_id" db:"ticket_type_id"`
	Quantity     int       `json:"quantity" db:"quantity"`
	UnitPrice    int       `json:"unit_price" db:"unit_price"` // snapshot, in cents
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// Joined for display
	Label   string `json:"label,omitempty" db:"-"`
	EventID int    `json:"event_id,omitempty" db:"-"`
}

// Subtotal returns the line total in cents
func (l *CartLine) Subtotal() int {
	return l.UnitPrice * l.Quantity
}

// CartView is a cart together with its purchasable lines
type CartView struct {
	Cart  *Cart       `json:"cart"`
	Lines []*CartLine `json:"lines"`
}

// TotalCents sums the snapshot price of every line
func (v *CartView) TotalCents() int {
	total := 0
	for _, line := range v.Lines {
		total += line.Subtotal()
	}
	return total
}
