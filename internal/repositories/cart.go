package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ticketmarket/internal/models"
)

// CartRepository handles cart and cart line data operations
type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetOrCreate resolves the user's cart, creating it lazily on first
// access. Safe under concurrent first-touch: the insert is a no-op when
// another request won the race.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID int) (*models.Cart, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user id is required: %w", models.ErrInvalidInput)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (user_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	cart := &models.Cart{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at FROM carts WHERE user_id = $1`, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return cart, nil
}

const cartLineSelect = `
	SELECT ci.id, ci.cart_id, ci.ticket_type_id, ci.quantity, ci.unit_price, ci.created_at,
	       tt.label, tt.event_id
	FROM cart_items ci
	JOIN ticket_types tt ON ci.ticket_type_id = tt.id`

func scanCartLine(row interface{ Scan(...interface{}) error }) (*models.CartLine, error) {
	line := &models.CartLine{}
	err := row.Scan(
		&line.ID,
		&line.CartID,
		&line.TicketTypeID,
		&line.Quantity,
		&line.UnitPrice,
		&line.CreatedAt,
		&line.Label,
		&line.EventID,
	)
	if err != nil {
		return nil, err
	}
	return line, nil
}

// ListLines retrieves all lines of a cart with their ticket type labels
func (r *CartRepository) ListLines(ctx context.Context, cartID int) ([]*models.CartLine, error) {
	query := cartLineSelect + ` WHERE ci.cart_id = $1 ORDER BY ci.ticket_type_id ASC`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	return collectCartLines(rows)
}

// ListLinesTx retrieves cart lines inside an open checkout transaction,
// ordered by ticket type id so inventory locks are always taken in the
// same order across concurrent checkouts.
func (r *CartRepository) ListLinesTx(ctx context.Context, tx *sql.Tx, cartID int) ([]*models.CartLine, error) {
	query := cartLineSelect + ` WHERE ci.cart_id = $1 ORDER BY ci.ticket_type_id ASC`

	rows, err := tx.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	return collectCartLines(rows)
}

func collectCartLines(rows *sql.Rows) ([]*models.CartLine, error) {
	var lines []*models.CartLine
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

// PruneUnpurchasable deletes lines whose event has already started.
// Viewing a cart runs this first so stale lines vanish instead of
// failing later at checkout.
func (r *CartRepository) PruneUnpurchasable(ctx context.Context, cartID int, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1
		  AND ticket_type_id IN (
			SELECT tt.id
			FROM ticket_types tt
			JOIN events e ON tt.event_id = e.id
			WHERE e.start_time < $2
		  )`, cartID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cart lines: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// UpsertLine inserts a new line or increments an existing one. The unit
// price snapshot is written once on insert and never overwritten by
// later adds.
func (r *CartRepository) UpsertLine(ctx context.Context, cartID, ticketTypeID, qty, unitPrice int) (*models.CartLine, error) {
	query := `
		INSERT INTO cart_items (cart_id, ticket_type_id, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, ticket_type_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, cart_id, ticket_type_id, quantity, unit_price, created_at`

	line := &models.CartLine{}
	err := r.db.QueryRowContext(ctx, query, cartID, ticketTypeID, qty, unitPrice, time.Now()).Scan(
		&line.ID,
		&line.CartID,
		&line.TicketTypeID,
		&line.Quantity,
		&line.UnitPrice,
		&line.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart line: %w", err)
	}

	return line, nil
}

// GetLine retrieves one line by cart and ticket type
func (r *CartRepository) GetLine(ctx context.Context, cartID, ticketTypeID int) (*models.CartLine, error) {
	query := cartLineSelect + ` WHERE ci.cart_id = $1 AND ci.ticket_type_id = $2`

	line, err := scanCartLine(r.db.QueryRowContext(ctx, query, cartID, ticketTypeID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("cart line for ticket type %d: %w", ticketTypeID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get cart line: %w", err)
	}

	return line, nil
}

// SetLineQuantity overwrites an existing line's quantity. The line must
// already exist; the price snapshot is left untouched.
func (r *CartRepository) SetLineQuantity(ctx context.Context, cartID, ticketTypeID, qty int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE cart_id = $1 AND ticket_type_id = $2`, cartID, ticketTypeID, qty)
	if err != nil {
		return fmt.Errorf("failed to set cart line quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("cart line for ticket type %d: %w", ticketTypeID, models.ErrNotFound)
	}

	return nil
}

// DeleteLine removes one line; removing an absent line is not an error
func (r *CartRepository) DeleteLine(ctx context.Context, cartID, ticketTypeID int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND ticket_type_id = $2`, cartID, ticketTypeID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}

	return nil
}

// DeleteLinesTx removes the given ticket types from the cart inside the
// checkout transaction, so purchased lines disappear atomically with the
// purchase itself.
func (r *CartRepository) DeleteLinesTx(ctx context.Context, tx *sql.Tx, cartID int, ticketTypeIDs []int) error {
	if len(ticketTypeIDs) == 0 {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND ticket_type_id = ANY($2)`, cartID, pq.Array(ticketTypeIDs))
	if err != nil {
		return fmt.Errorf("failed to delete purchased cart lines: %w", err)
	}

	return nil
}

// Clear empties the cart; idempotent
func (r *CartRepository) Clear(ctx context.Context, cartID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}
