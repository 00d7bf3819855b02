package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// Payment represents one approved charge against a user's payment method.
// It is the system of record for money movement; the gateway's advisory
// balance is never authoritative.
type Payment struct {
	ID              int       `json:"id" db:"id"`
	UserID          int       `json:"user_id" db:"user_id"`
	EventID         *int      `json:"event_id,omitempty" db:"event_id"` // set when all purchased lines share one event
	PaymentMethodID int       `json:"payment_method_id" db:"payment_method_id"`
	Reference       string    `json:"reference" db:"reference"`
	Amount          int       `json:"amount" db:"amount"` // Amount in cents
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Purchase links exactly one ticket to the payment that bought it
type Purchase struct {
	ID        int `json:"id" db:"id"`
	PaymentID int `json:"payment_id" db:"payment_id"`
	TicketID  int `json:"ticket_id" db:"ticket_id"`
	Amount    int `json:"amount" db:"amount"` // Amount in cents
}

// Refund represents money returned against a payment. The sum of refunds
// for a payment never exceeds the payment's original amount; the gateway
// does not enforce this, the checkout service does.
type Refund struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	PaymentID int       `json:"payment_id" db:"payment_id"`
	Amount    int       `json:"amount" db:"amount"` // Amount in cents
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Payout represents the settlement credit issued to an organizer after
// their event has ended.
type Payout struct {
	ID          int       `json:"id" db:"id"`
	OrganizerID int       `json:"organizer_id" db:"organizer_id"`
	EventID     int       `json:"event_id" db:"event_id"`
	Reference   string    `json:"reference" db:"reference"`
	Amount      int       `json:"amount" db:"amount"` // Amount in cents
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PaymentMethod is a verified card linked to a user, identified at the
// gateway by an opaque account id. Card data itself never touches our
// storage beyond the fingerprint and display digits.
type PaymentMethod struct {
	ID               int       `json:"id" db:"id"`
	UserID           int       `json:"user_id" db:"user_id"`
	GatewayAccountID string    `json:"gateway_account_id" db:"gateway_account_id"`
	CardFingerprint  string    `json:"-" db:"card_fingerprint"`
	LastFour         string    `json:"last_four" db:"last_four"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

var paymentReferenceRegex = regexp.MustCompile(`^(PAY|PO)-\d{8}-\d{6}$`)

// Validate validates the payment data
func (p *Payment) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("payment amount must be greater than 0: %w", ErrInvalidInput)
	}

	if !paymentReferenceRegex.MatchString(p.Reference) {
		return fmt.Errorf("invalid payment reference format: %w", ErrInvalidInput)
	}

	return nil
}

// GeneratePaymentReference generates a unique payment reference.
// Format: PAY-YYYYMMDD-XXXXXX (e.g. PAY-20240101-123456)
func GeneratePaymentReference() string {
	return generateReference("PAY")
}

// GeneratePayoutReference generates a unique payout reference.
// Format: PO-YYYYMMDD-XXXXXX
func GeneratePayoutReference() string {
	return generateReference("PO")
}

func generateReference(prefix string) string {
	now := time.Now()
	dateStr := now.Format("20060102")

	// Six random digits from crypto/rand; timestamp fallback if the
	// system source is unavailable
	max := big.NewInt(1000000)
	randomNum, err := rand.Int(rand.Reader, max)
	if err != nil {
		return fmt.Sprintf("%s-%s-%06d", prefix, dateStr, now.UnixNano()%1000000)
	}

	return fmt.Sprintf("%s-%s-%06d", prefix, dateStr, randomNum.Int64())
}
