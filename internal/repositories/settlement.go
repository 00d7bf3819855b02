package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ticketmarket/internal/models"
)

// SettlementRepository backs the payout sweeper. All the money math
// for one event runs inside a single transaction holding the event's
// row lock.
type SettlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository creates a new settlement repository
func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// ListExpired returns events whose end time has passed. Settled rows
// are included: a settled event that still exists had its deletion
// fail, and the sweeper finishes the job on the next pass.
func (r *SettlementRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE end_time < $1
		ORDER BY end_time ASC`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// LockEvent takes the event's row lock so only one sweeper settles it
func (r *SettlementRepository) LockEvent(ctx context.Context, tx *sql.Tx, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	event, err := scanEvent(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	return event, nil
}

// DirectRevenue sums payments recorded directly against the event
func (r *SettlementRepository) DirectRevenue(ctx context.Context, tx *sql.Tx, eventID int) (int, error) {
	var total int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE event_id = $1`, eventID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum direct revenue: %w", err)
	}

	return total, nil
}

// TicketRevenue sums purchase amounts reached through the event's
// tickets. Mixed-event payments only show up on this path.
func (r *SettlementRepository) TicketRevenue(ctx context.Context, tx *sql.Tx, eventID int) (int, error) {
	var total int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM purchases p
		JOIN tickets t ON t.id = p.ticket_id
		WHERE t.event_id = $1`, eventID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ticket revenue: %w", err)
	}

	return total, nil
}

// CreatePayout records the organizer payout. A second payout for the
// same event trips the unique index and surfaces as ErrDuplicateEntry.
func (r *SettlementRepository) CreatePayout(ctx context.Context, tx *sql.Tx, payout *models.Payout) (*models.Payout, error) {
	query := `
		INSERT INTO payouts (organizer_id, event_id, reference, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	created := *payout
	err := tx.QueryRowContext(
		ctx,
		query,
		payout.OrganizerID,
		payout.EventID,
		payout.Reference,
		payout.Amount,
		time.Now(),
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, fmt.Errorf("event %d already paid out: %w", payout.EventID, models.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}

	return &created, nil
}

// MarkSettled stamps the event inside the settlement transaction
func (r *SettlementRepository) MarkSettled(ctx context.Context, tx *sql.Tx, eventID int, at time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE events SET settled_at = $2 WHERE id = $1 AND settled_at IS NULL`, eventID, at)
	if err != nil {
		return fmt.Errorf("failed to mark event settled: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("event %d already settled: %w", eventID, models.ErrConflict)
	}

	return nil
}

// DeleteEvent removes a settled event. Ticket types, tickets and cart
// lines cascade; payments keep their rows with event_id nulled.
func (r *SettlementRepository) DeleteEvent(ctx context.Context, eventID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1 AND settled_at IS NOT NULL`, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

// ListPayoutsByOrganizer retrieves an organizer's payout history
func (r *SettlementRepository) ListPayoutsByOrganizer(ctx context.Context, organizerID int) ([]*models.Payout, error) {
	query := `
		SELECT id, organizer_id, event_id, reference, amount, created_at
		FROM payouts
		WHERE organizer_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, organizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		payout := &models.Payout{}
		err := rows.Scan(
			&payout.ID,
			&payout.OrganizerID,
			&payout.EventID,
			&payout.Reference,
			&payout.Amount,
			&payout.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, payout)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payouts: %w", err)
	}

	return payouts, nil
}
