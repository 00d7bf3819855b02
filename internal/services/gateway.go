package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ticketmarket/internal/models"
)

// PaymentGateway abstracts the card processor. The checkout and
// settlement services only ever talk to this interface.
type PaymentGateway interface {
	// Verify validates card details and returns the gateway account id
	// for the card, creating the account on first sight.
	Verify(ctx context.Context, card *models.Card) (string, error)

	// Authorize charges an account. A decline comes back as a
	// *models.DeclinedError; the advisory balance is never mutated.
	Authorize(ctx context.Context, accountID, cvv string, amount int, currency string) (*GatewayTransaction, error)

	// Refund credits an account. Only an unknown account declines.
	Refund(ctx context.Context, accountID string, amount int, currency string) (*GatewayTransaction, error)
}

// GatewayTransaction is the processor's receipt for one operation
type GatewayTransaction struct {
	ID       string `json:"id"`
	Account  string `json:"account"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}

type gatewayAccount struct {
	id       string
	cvv      string
	currency string
	balance  int
}

// MockGateway is an in-memory card processor used for development and
// tests. Accounts are keyed by a fingerprint of the normalized card
// details, so the same physical card always maps to one account.
type MockGateway struct {
	mu             sync.Mutex
	accounts       map[string]*gatewayAccount // account id -> account
	byFingerprint  map[string]string          // fingerprint -> account id
	currency       string
	initialBalance int
}

// NewMockGateway creates a gateway whose new accounts start with the
// given advisory balance in the given currency.
func NewMockGateway(currency string, initialBalance int) *MockGateway {
	return &MockGateway{
		accounts:       make(map[string]*gatewayAccount),
		byFingerprint:  make(map[string]string),
		currency:       strings.ToUpper(currency),
		initialBalance: initialBalance,
	}
}

// Fingerprint derives a stable identifier from normalized card details
func Fingerprint(card *models.Card) string {
	sum := sha256.Sum256([]byte(card.NormalizedNumber() + "|" + strings.TrimSpace(card.Holder) + "|" + card.Expiry))
	return hex.EncodeToString(sum[:])
}

// Verify validates the card and returns its gateway account id,
// creating the account on first sight.
func (g *MockGateway) Verify(ctx context.Context, card *models.Card) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := card.Validate(); err != nil {
		return "", fmt.Errorf("card verification failed: %w", err)
	}

	fingerprint := Fingerprint(card)

	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.byFingerprint[fingerprint]; ok {
		return id, nil
	}

	account := &gatewayAccount{
		id:       uuid.New().String(),
		cvv:      card.CVV,
		currency: g.currency,
		balance:  g.initialBalance,
	}
	g.accounts[account.id] = account
	g.byFingerprint[fingerprint] = account.id

	return account.id, nil
}

// Authorize approves or declines a charge. The advisory balance is
// checked but never decremented; it bounds total spend only loosely.
func (g *MockGateway) Authorize(ctx context.Context, accountID, cvv string, amount int, currency string) (*GatewayTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("charge amount must be greater than 0: %w", models.ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	account, ok := g.accounts[accountID]
	if !ok {
		return nil, &models.DeclinedError{Op: "authorize", Reason: models.DeclineUnknownAccount}
	}
	if account.cvv != cvv {
		return nil, &models.DeclinedError{Op: "authorize", Reason: models.DeclineCVVMismatch}
	}
	if !strings.EqualFold(account.currency, currency) {
		return nil, &models.DeclinedError{Op: "authorize", Reason: models.DeclineCurrencyMismatch}
	}
	if amount > account.balance {
		return nil, &models.DeclinedError{Op: "authorize", Reason: models.DeclineInsufficientFunds}
	}

	return &GatewayTransaction{
		ID:       uuid.New().String(),
		Account:  accountID,
		Amount:   amount,
		Currency: account.currency,
	}, nil
}

// Refund credits an account. Declines only when the account is unknown.
func (g *MockGateway) Refund(ctx context.Context, accountID string, amount int, currency string) (*GatewayTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("refund amount must be greater than 0: %w", models.ErrInvalidInput)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	account, ok := g.accounts[accountID]
	if !ok {
		return nil, &models.DeclinedError{Op: "refund", Reason: models.DeclineUnknownAccount}
	}

	account.balance += amount

	return &GatewayTransaction{
		ID:       uuid.New().String(),
		Account:  accountID,
		Amount:   amount,
		Currency: account.currency,
	}, nil
}
