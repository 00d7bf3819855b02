package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ticketmarket/internal/models"
)

// PaymentMethodRepository handles stored card references. Only the
// gateway account id, fingerprint and last four digits are persisted.
type PaymentMethodRepository struct {
	db *sql.DB
}

// NewPaymentMethodRepository creates a new payment method repository
func NewPaymentMethodRepository(db *sql.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

// Create stores a new payment method. Saving the same card twice for
// one user surfaces as ErrDuplicateEntry.
func (r *PaymentMethodRepository) Create(ctx context.Context, method *models.PaymentMethod) (*models.PaymentMethod, error) {
	query := `
		INSERT INTO payment_methods (user_id, gateway_account_id, card_fingerprint, last_four, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	created := *method
	err := r.db.QueryRowContext(
		ctx,
		query,
		method.UserID,
		method.GatewayAccountID,
		method.CardFingerprint,
		method.LastFour,
		time.Now(),
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("card already saved: %w", models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create payment method: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a payment method by ID
func (r *PaymentMethodRepository) GetByID(ctx context.Context, id int) (*models.PaymentMethod, error) {
	query := `
		SELECT id, user_id, gateway_account_id, card_fingerprint, last_four, created_at
		FROM payment_methods
		WHERE id = $1`

	method := &models.PaymentMethod{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&method.ID,
		&method.UserID,
		&method.GatewayAccountID,
		&method.CardFingerprint,
		&method.LastFour,
		&method.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("payment method %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}

	return method, nil
}

// ListByUser retrieves a user's saved payment methods
func (r *PaymentMethodRepository) ListByUser(ctx context.Context, userID int) ([]*models.PaymentMethod, error) {
	query := `
		SELECT id, user_id, gateway_account_id, card_fingerprint, last_four, created_at
		FROM payment_methods
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*models.PaymentMethod
	for rows.Next() {
		method := &models.PaymentMethod{}
		err := rows.Scan(
			&method.ID,
			&method.UserID,
			&method.GatewayAccountID,
			&method.CardFingerprint,
			&method.LastFour,
			&method.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, method)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment methods: %w", err)
	}

	return methods, nil
}

// Delete removes a stored payment method owned by the user
func (r *PaymentMethodRepository) Delete(ctx context.Context, id, userID int) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM payment_methods WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete payment method: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("payment method %d: %w", id, models.ErrNotFound)
	}

	return nil
}
