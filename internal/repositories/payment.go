package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ticketmarket/internal/models"
)

// PaymentRepository handles the append-only audit chain written at
// checkout: payments, minted tickets, the purchase rows linking them,
// and refunds.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment inserts one payment row inside the checkout transaction
func (r *PaymentRepository) CreatePayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) (*models.Payment, error) {
	if err := payment.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO payments (user_id, event_id, payment_method_id, reference, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	created := *payment
	err := tx.QueryRowContext(
		ctx,
		query,
		payment.UserID,
		payment.EventID,
		payment.PaymentMethodID,
		payment.Reference,
		payment.Amount,
		time.Now(),
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return &created, nil
}

// MintTicket inserts one ticket row. A duplicate code surfaces as
// ErrDuplicateEntry so the caller can regenerate and retry.
func (r *PaymentRepository) MintTicket(ctx context.Context, tx *sql.Tx, ticket *models.Ticket) (*models.Ticket, error) {
	query := `
		INSERT INTO tickets (event_id, user_id, ticket_type_id, code, price, status, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, purchased_at`

	minted := *ticket
	err := tx.QueryRowContext(
		ctx,
		query,
		ticket.EventID,
		ticket.UserID,
		ticket.TicketTypeID,
		ticket.Code,
		ticket.Price,
		models.TicketActive,
		time.Now(),
	).Scan(&minted.ID, &minted.PurchasedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("ticket code collision: %w", models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to mint ticket: %w", err)
	}

	minted.Status = models.TicketActive
	return &minted, nil
}

// CreatePurchase links one minted ticket to the payment that bought it
func (r *PaymentRepository) CreatePurchase(ctx context.Context, tx *sql.Tx, paymentID, ticketID, amount int) (*models.Purchase, error) {
	query := `
		INSERT INTO purchases (payment_id, ticket_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id`

	purchase := &models.Purchase{
		PaymentID: paymentID,
		TicketID:  ticketID,
		Amount:    amount,
	}
	err := tx.QueryRowContext(ctx, query, paymentID, ticketID, amount).Scan(&purchase.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	return purchase, nil
}

// GetPaymentByID retrieves a payment by ID
func (r *PaymentRepository) GetPaymentByID(ctx context.Context, id int) (*models.Payment, error) {
	query := `
		SELECT id, user_id, event_id, payment_method_id, reference, amount, created_at
		FROM payments
		WHERE id = $1`

	payment := &models.Payment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&payment.ID,
		&payment.UserID,
		&payment.EventID,
		&payment.PaymentMethodID,
		&payment.Reference,
		&payment.Amount,
		&payment.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payment %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// LockPayment takes a row lock on the payment so concurrent refunds
// serialize against the refundable-amount check.
func (r *PaymentRepository) LockPayment(ctx context.Context, tx *sql.Tx, id int) (*models.Payment, error) {
	query := `
		SELECT id, user_id, event_id, payment_method_id, reference, amount, created_at
		FROM payments
		WHERE id = $1
		FOR UPDATE`

	payment := &models.Payment{}
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&payment.ID,
		&payment.UserID,
		&payment.EventID,
		&payment.PaymentMethodID,
		&payment.Reference,
		&payment.Amount,
		&payment.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payment %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}

	return payment, nil
}

// SumRefunds returns the total already refunded against a payment
func (r *PaymentRepository) SumRefunds(ctx context.Context, tx *sql.Tx, paymentID int) (int, error) {
	var total int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE payment_id = $1`, paymentID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum refunds: %w", err)
	}

	return total, nil
}

// CreateRefund inserts one refund row inside the caller's transaction
func (r *PaymentRepository) CreateRefund(ctx context.Context, tx *sql.Tx, refund *models.Refund) (*models.Refund, error) {
	if refund.Amount <= 0 {
		return nil, fmt.Errorf("refund amount must be greater than 0: %w", models.ErrInvalidInput)
	}

	query := `
		INSERT INTO refunds (user_id, payment_id, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	created := *refund
	err := tx.QueryRowContext(ctx, query, refund.UserID, refund.PaymentID, refund.Amount, time.Now()).
		Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	return &created, nil
}

const ticketColumns = "id, event_id, user_id, ticket_type_id, code, price, status, purchased_at"

func scanTicket(row interface{ Scan(...interface{}) error }) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	err := row.Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.UserID,
		&ticket.TicketTypeID,
		&ticket.Code,
		&ticket.Price,
		&ticket.Status,
		&ticket.PurchasedAt,
	)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetTicketByID retrieves a ticket by ID
func (r *PaymentRepository) GetTicketByID(ctx context.Context, id int) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return ticket, nil
}

// GetTicketByCode retrieves a ticket by its unique entry code
func (r *PaymentRepository) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE code = $1`

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket with code %s: %w", code, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket by code: %w", err)
	}

	return ticket, nil
}

// GetTicketForUpdate locks a ticket row for the refund path
func (r *PaymentRepository) GetTicketForUpdate(ctx context.Context, tx *sql.Tx, id int) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`

	ticket, err := scanTicket(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock ticket: %w", err)
	}

	return ticket, nil
}

// GetPurchaseByTicket retrieves the purchase row linking a ticket to its payment
func (r *PaymentRepository) GetPurchaseByTicket(ctx context.Context, tx *sql.Tx, ticketID int) (*models.Purchase, error) {
	query := `SELECT id, payment_id, ticket_id, amount FROM purchases WHERE ticket_id = $1`

	purchase := &models.Purchase{}
	err := tx.QueryRowContext(ctx, query, ticketID).Scan(
		&purchase.ID,
		&purchase.PaymentID,
		&purchase.TicketID,
		&purchase.Amount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("purchase for ticket %d: %w", ticketID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	return purchase, nil
}

// MarkTicketRefunded flips a ticket to refunded inside the refund transaction
func (r *PaymentRepository) MarkTicketRefunded(ctx context.Context, tx *sql.Tx, id int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE tickets SET status = $2 WHERE id = $1 AND status = $3`,
		id, models.TicketRefunded, models.TicketActive)
	if err != nil {
		return fmt.Errorf("failed to mark ticket refunded: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("ticket %d is not refundable: %w", id, models.ErrConflict)
	}

	return nil
}

// ListTicketsByUser retrieves a user's tickets, newest first
func (r *PaymentRepository) ListTicketsByUser(ctx context.Context, userID int, limit, offset int) ([]*models.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY purchased_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	return tickets, nil
}
