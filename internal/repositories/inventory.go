package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketmarket/internal/models"
)

// InventoryRepository handles ticket type stock operations. Every
// decrement decision must happen behind LockForUpdate inside the
// caller's transaction; the conditional UPDATE is what makes concurrent
// checkouts serialize at the storage layer.
type InventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const ticketTypeColumns = "id, event_id, label, price, quantity_total, quantity_left, created_at"

func scanTicketType(row interface{ Scan(...interface{}) error }) (*models.TicketType, error) {
	tt := &models.TicketType{}
	err := row.Scan(
		&tt.ID,
		&tt.EventID,
		&tt.Label,
		&tt.Price,
		&tt.QuantityTotal,
		&tt.QuantityLeft,
		&tt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return tt, nil
}

// CreateTicketType creates a new ticket type with a full stock of units
func (r *InventoryRepository) CreateTicketType(ctx context.Context, req *models.TicketTypeCreateRequest) (*models.TicketType, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO ticket_types (event_id, label, price, quantity_total, quantity_left, created_at)
		VALUES ($1, $2, $3, $4, $4, $5)
		RETURNING ` + ticketTypeColumns

	tt, err := scanTicketType(r.db.QueryRowContext(
		ctx,
		query,
		req.EventID,
		req.Label,
		req.Price,
		req.Quantity,
		time.Now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket type: %w", err)
	}

	return tt, nil
}

// GetTicketTypeByID retrieves a ticket type by ID
func (r *InventoryRepository) GetTicketTypeByID(ctx context.Context, id int) (*models.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE id = $1`

	tt, err := scanTicketType(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket type %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	return tt, nil
}

// GetTicketTypesByEvent retrieves all ticket types for an event
func (r *InventoryRepository) GetTicketTypesByEvent(ctx context.Context, eventID int) ([]*models.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE event_id = $1 ORDER BY price ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket types by event: %w", err)
	}
	defer rows.Close()

	var ticketTypes []*models.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		ticketTypes = append(ticketTypes, tt)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket types: %w", err)
	}

	return ticketTypes, nil
}

// LockForUpdate takes a row lock on the ticket type, valid for the life
// of tx. Must be called before any decrement decision so the read of
// quantity_left stays valid until the paired write.
func (r *InventoryRepository) LockForUpdate(ctx context.Context, tx *sql.Tx, id int) (*models.TicketType, error) {
	query := `SELECT ` + ticketTypeColumns + ` FROM ticket_types WHERE id = $1 FOR UPDATE`

	tt, err := scanTicketType(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket type %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock ticket type: %w", err)
	}

	return tt, nil
}

// Decrement consumes qty units of stock. It returns false, and writes
// nothing, when fewer than qty units remain; sold-out is a normal
// outcome here, not an error.
func (r *InventoryRepository) Decrement(ctx context.Context, tx *sql.Tx, id, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("decrement quantity must be positive: %w", models.ErrInvalidInput)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE ticket_types
		SET quantity_left = quantity_left - $2
		WHERE id = $1 AND quantity_left >= $2`, id, qty)
	if err != nil {
		return false, fmt.Errorf("failed to decrement ticket type %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// Increment returns qty units to stock, used on refund. The result is
// capped at quantity_total so a stray double-refund cannot overfill the
// bucket.
func (r *InventoryRepository) Increment(ctx context.Context, tx *sql.Tx, id, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("increment quantity must be positive: %w", models.ErrInvalidInput)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE ticket_types
		SET quantity_left = LEAST(quantity_left + $2, quantity_total)
		WHERE id = $1`, id, qty)
	if err != nil {
		return fmt.Errorf("failed to increment ticket type %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("ticket type %d: %w", id, models.ErrNotFound)
	}

	return nil
}

// IncreaseQuantity grows a ticket type's total (and remaining) stock by
// delta. Shrinking is rejected: sales may be in flight and sold units
// cannot be clawed back.
func (r *InventoryRepository) IncreaseQuantity(ctx context.Context, id, delta int) (*models.TicketType, error) {
	if delta < 0 {
		return nil, fmt.Errorf("quantity delta must not be negative: %w", models.ErrInvalidInput)
	}

	query := `
		UPDATE ticket_types
		SET quantity_total = quantity_total + $2, quantity_left = quantity_left + $2
		WHERE id = $1
		RETURNING ` + ticketTypeColumns

	tt, err := scanTicketType(r.db.QueryRowContext(ctx, query, id, delta))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ticket type %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to increase ticket type quantity: %w", err)
	}

	return tt, nil
}
