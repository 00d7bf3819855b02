package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"ticketmarket/internal/models"
	"ticketmarket/internal/utils"
)

// ticketCodeRetries bounds regeneration attempts on a code collision
const ticketCodeRetries = 5

// CartStore is the cart data access checkout needs
type CartStore interface {
	GetOrCreate(ctx context.Context, userID int) (*models.Cart, error)
	ListLinesTx(ctx context.Context, tx *sql.Tx, cartID int) ([]*models.CartLine, error)
	DeleteLinesTx(ctx context.Context, tx *sql.Tx, cartID int, ticketTypeIDs []int) error
}

// InventoryStore is the stock data access checkout needs
type InventoryStore interface {
	LockForUpdate(ctx context.Context, tx *sql.Tx, id int) (*models.TicketType, error)
	Decrement(ctx context.Context, tx *sql.Tx, id, qty int) (bool, error)
	Increment(ctx context.Context, tx *sql.Tx, id, qty int) error
}

// EventStore is the event data access checkout needs
type EventStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id int) (*models.Event, error)
}

// PaymentStore is the payment/ticket data access checkout needs
type PaymentStore interface {
	CreatePayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) (*models.Payment, error)
	MintTicket(ctx context.Context, tx *sql.Tx, ticket *models.Ticket) (*models.Ticket, error)
	CreatePurchase(ctx context.Context, tx *sql.Tx, paymentID, ticketID, amount int) (*models.Purchase, error)
	GetTicketForUpdate(ctx context.Context, tx *sql.Tx, id int) (*models.Ticket, error)
	GetPurchaseByTicket(ctx context.Context, tx *sql.Tx, ticketID int) (*models.Purchase, error)
	LockPayment(ctx context.Context, tx *sql.Tx, id int) (*models.Payment, error)
	SumRefunds(ctx context.Context, tx *sql.Tx, paymentID int) (int, error)
	CreateRefund(ctx context.Context, tx *sql.Tx, refund *models.Refund) (*models.Refund, error)
	MarkTicketRefunded(ctx context.Context, tx *sql.Tx, id int) error
}

// PaymentMethodStore is the saved-card access checkout needs
type PaymentMethodStore interface {
	GetByID(ctx context.Context, id int) (*models.PaymentMethod, error)
}

// CheckoutResult is what a successful purchase returns
type CheckoutResult struct {
	Payment *models.Payment  `json:"payment"`
	Tickets []*models.Ticket `json:"tickets"`
}

// CheckoutService runs the purchase flow as one database transaction:
// lock stock, authorize the charge, decrement, mint tickets, commit.
// Nothing is visible to other sessions until the commit.
type CheckoutService struct {
	db             *sql.DB
	cartStore      CartStore
	inventoryStore InventoryStore
	eventStore     EventStore
	paymentStore   PaymentStore
	methodStore    PaymentMethodStore
	gateway        PaymentGateway
	notifier       Notifier
	currency       string
	gatewayTimeout time.Duration
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	db *sql.DB,
	cartStore CartStore,
	inventoryStore InventoryStore,
	eventStore EventStore,
	paymentStore PaymentStore,
	methodStore PaymentMethodStore,
	gateway PaymentGateway,
	notifier Notifier,
	currency string,
	gatewayTimeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		db:             db,
		cartStore:      cartStore,
		inventoryStore: inventoryStore,
		eventStore:     eventStore,
		paymentStore:   paymentStore,
		methodStore:    methodStore,
		gateway:        gateway,
		notifier:       notifier,
		currency:       currency,
		gatewayTimeout: gatewayTimeout,
	}
}

// orderLine is one ticket type being purchased, priced at either the
// cart snapshot or, for buy-now, the current list price.
type orderLine struct {
	ticketTypeID int
	eventID      int
	quantity     int
	unitPrice    int
	fromCart     bool
}

// Checkout purchases the entire contents of the user's cart
func (s *CheckoutService) Checkout(ctx context.Context, userID, paymentMethodID int, cvv string) (*CheckoutResult, error) {
	cart, err := s.cartStore.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, userID, paymentMethodID, cvv, cart.ID, nil)
}

// CheckoutNow purchases a single ticket type directly, bypassing the
// cart. The charge uses the current list price.
func (s *CheckoutService) CheckoutNow(ctx context.Context, userID, ticketTypeID, quantity, paymentMethodID int, cvv string) (*CheckoutResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be greater than 0: %w", models.ErrInvalidInput)
	}

	adHoc := &orderLine{ticketTypeID: ticketTypeID, quantity: quantity}
	return s.run(ctx, userID, paymentMethodID, cvv, 0, adHoc)
}

func (s *CheckoutService) run(ctx context.Context, userID, paymentMethodID int, cvv string, cartID int, adHoc *orderLine) (*CheckoutResult, error) {
	method, err := s.methodStore.GetByID(ctx, paymentMethodID)
	if err != nil {
		return nil, err
	}
	if method.UserID != userID {
		return nil, fmt.Errorf("payment method %d: %w", paymentMethodID, models.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	defer tx.Rollback()

	lines, err := s.loadLines(ctx, tx, cartID, adHoc)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("nothing to purchase: %w", models.ErrInvalidInput)
	}

	// Locks are always taken in ascending ticket type order so two
	// concurrent checkouts over overlapping carts cannot deadlock.
	sort.Slice(lines, func(i, j int) bool { return lines[i].ticketTypeID < lines[j].ticketTypeID })

	now := time.Now()
	total := 0
	for _, line := range lines {
		ticketType, err := s.inventoryStore.LockForUpdate(ctx, tx, line.ticketTypeID)
		if err != nil {
			return nil, err
		}

		event, err := s.eventStore.GetByIDTx(ctx, tx, ticketType.EventID)
		if err != nil {
			return nil, err
		}
		if !event.IsPurchasable(now) {
			return nil, fmt.Errorf("sales for %q have closed: %w", event.Title, models.ErrSalesClosed)
		}

		if line.quantity > ticketType.QuantityLeft {
			return nil, fmt.Errorf("only %d tickets left for %q: %w",
				ticketType.QuantityLeft, ticketType.Label, models.ErrInsufficientStock)
		}

		line.eventID = ticketType.EventID
		if !line.fromCart {
			line.unitPrice = ticketType.Price
		}
		total += line.unitPrice * line.quantity
	}

	// The gateway call runs while the row locks are held; the timeout
	// keeps a stalled processor from pinning inventory.
	authCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	if _, err := s.gateway.Authorize(authCtx, method.GatewayAccountID, cvv, total, s.currency); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &models.DeclinedError{Op: "authorize", Reason: models.DeclineTimeout}
		}
		return nil, err
	}

	result, err := s.record(ctx, tx, userID, method, lines, total, cartID)
	if err != nil {
		s.compensate(method.GatewayAccountID, total, err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit checkout: %w", err)
		s.compensate(method.GatewayAccountID, total, err)
		return nil, err
	}

	go func() {
		if err := s.notifier.PurchaseConfirmed(context.Background(), userID, result.Payment, result.Tickets); err != nil {
			log.Printf("Warning: purchase notification failed for payment %s: %v", result.Payment.Reference, err)
		}
	}()

	return result, nil
}

func (s *CheckoutService) loadLines(ctx context.Context, tx *sql.Tx, cartID int, adHoc *orderLine) ([]*orderLine, error) {
	if adHoc != nil {
		return []*orderLine{adHoc}, nil
	}

	cartLines, err := s.cartStore.ListLinesTx(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	lines := make([]*orderLine, 0, len(cartLines))
	for _, cl := range cartLines {
		lines = append(lines, &orderLine{
			ticketTypeID: cl.TicketTypeID,
			quantity:     cl.Quantity,
			unitPrice:    cl.UnitPrice,
			fromCart:     true,
		})
	}
	return lines, nil
}

// record writes every row of the purchase inside the transaction:
// stock decrements, the payment, one ticket and purchase per unit, and
// the cart line cleanup.
func (s *CheckoutService) record(ctx context.Context, tx *sql.Tx, userID int, method *models.PaymentMethod, lines []*orderLine, total, cartID int) (*CheckoutResult, error) {
	for _, line := range lines {
		ok, err := s.inventoryStore.Decrement(ctx, tx, line.ticketTypeID, line.quantity)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("ticket type %d sold out: %w", line.ticketTypeID, models.ErrInsufficientStock)
		}
	}

	payment, err := s.paymentStore.CreatePayment(ctx, tx, &models.Payment{
		UserID:          userID,
		EventID:         singleEventID(lines),
		PaymentMethodID: method.ID,
		Reference:       models.GeneratePaymentReference(),
		Amount:          total,
	})
	if err != nil {
		return nil, err
	}

	var tickets []*models.Ticket
	var purchasedTypes []int
	for _, line := range lines {
		purchasedTypes = append(purchasedTypes, line.ticketTypeID)
		for i := 0; i < line.quantity; i++ {
			ticket, err := s.mintTicket(ctx, tx, userID, line)
			if err != nil {
				return nil, err
			}
			if _, err := s.paymentStore.CreatePurchase(ctx, tx, payment.ID, ticket.ID, line.unitPrice); err != nil {
				return nil, err
			}
			tickets = append(tickets, ticket)
		}
	}

	if cartID != 0 {
		if err := s.cartStore.DeleteLinesTx(ctx, tx, cartID, purchasedTypes); err != nil {
			return nil, err
		}
	}

	return &CheckoutResult{Payment: payment, Tickets: tickets}, nil
}

func (s *CheckoutService) mintTicket(ctx context.Context, tx *sql.Tx, userID int, line *orderLine) (*models.Ticket, error) {
	for attempt := 0; attempt < ticketCodeRetries; attempt++ {
		code, err := utils.GenerateTicketCode(models.TicketCodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ticket code: %w", err)
		}

		ticket, err := s.paymentStore.MintTicket(ctx, tx, &models.Ticket{
			EventID:      line.eventID,
			UserID:       userID,
			TicketTypeID: line.ticketTypeID,
			Code:         code,
			Price:        line.unitPrice,
		})
		if err != nil {
			if errors.Is(err, models.ErrDuplicateEntry) {
				continue
			}
			return nil, err
		}
		return ticket, nil
	}

	return nil, fmt.Errorf("exhausted ticket code attempts: %w", models.ErrInternal)
}

// compensate reverses an authorized charge after the local transaction
// failed. Best effort only; a failure here is logged for manual
// reconciliation.
func (s *CheckoutService) compensate(accountID string, amount int, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.gatewayTimeout)
	defer cancel()

	if _, err := s.gateway.Refund(ctx, accountID, amount, s.currency); err != nil {
		log.Printf("Warning: compensating refund of %d failed (original error: %v): %v", amount, cause, err)
	}
}

func singleEventID(lines []*orderLine) *int {
	if len(lines) == 0 {
		return nil
	}
	eventID := lines[0].eventID
	for _, line := range lines[1:] {
		if line.eventID != eventID {
			return nil
		}
	}
	return &eventID
}

// RefundTicket refunds one purchased ticket on behalf of the event's
// organizer: the gateway is credited, a refund row is written, the
// ticket flips to refunded and its unit goes back into inventory. The
// payment's row lock serializes concurrent refunds so the refunded
// total never exceeds the charge.
func (s *CheckoutService) RefundTicket(ctx context.Context, callerID, ticketID int) (*models.Refund, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin refund transaction: %w", err)
	}
	defer tx.Rollback()

	ticket, err := s.paymentStore.GetTicketForUpdate(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}

	// Only the organizer of the ticket's event may refund it.
	event, err := s.eventStore.GetByIDTx(ctx, tx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != callerID {
		return nil, fmt.Errorf("ticket %d: %w", ticketID, models.ErrNotFound)
	}

	if !ticket.CanBeRefunded() {
		return nil, fmt.Errorf("ticket %d already refunded: %w", ticketID, models.ErrConflict)
	}

	purchase, err := s.paymentStore.GetPurchaseByTicket(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentStore.LockPayment(ctx, tx, purchase.PaymentID)
	if err != nil {
		return nil, err
	}

	refunded, err := s.paymentStore.SumRefunds(ctx, tx, payment.ID)
	if err != nil {
		return nil, err
	}
	if purchase.Amount > payment.Amount-refunded {
		return nil, fmt.Errorf("refund exceeds remaining refundable amount: %w", models.ErrConflict)
	}

	method, err := s.methodStore.GetByID(ctx, payment.PaymentMethodID)
	if err != nil {
		return nil, err
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	if _, err := s.gateway.Refund(refundCtx, method.GatewayAccountID, purchase.Amount, s.currency); err != nil {
		return nil, err
	}

	refund, err := s.paymentStore.CreateRefund(ctx, tx, &models.Refund{
		UserID:    ticket.UserID,
		PaymentID: payment.ID,
		Amount:    purchase.Amount,
	})
	if err != nil {
		return nil, err
	}

	if err := s.paymentStore.MarkTicketRefunded(ctx, tx, ticketID); err != nil {
		return nil, err
	}
	if err := s.inventoryStore.Increment(ctx, tx, ticket.TicketTypeID, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		// The gateway credit already went through; flag the divergence
		// for manual reconciliation.
		log.Printf("Warning: gateway refunded %d for payment %d but local commit failed: %v",
			purchase.Amount, payment.ID, err)
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}

	go func() {
		if err := s.notifier.RefundConfirmed(context.Background(), ticket.UserID, refund); err != nil {
			log.Printf("Warning: refund notification failed for payment %d: %v", payment.ID, err)
		}
	}()

	return refund, nil
}
