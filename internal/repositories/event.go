package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticketmarket/internal/models"
)

// EventRepository handles event data operations
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = "id, title, organizer_id, start_time, end_time, settled_at, created_at"

func scanEvent(row interface{ Scan(...interface{}) error }) (*models.Event, error) {
	event := &models.Event{}
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.OrganizerID,
		&event.StartTime,
		&event.EndTime,
		&event.SettledAt,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Create creates a new event
func (r *EventRepository) Create(ctx context.Context, req *models.EventCreateRequest) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO events (title, organizer_id, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + eventColumns

	event, err := scanEvent(r.db.QueryRowContext(
		ctx,
		query,
		req.Title,
		req.OrganizerID,
		req.StartTime,
		req.EndTime,
		time.Now(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// GetByIDTx retrieves an event inside an open transaction. Checkout uses
// it to read the purchase window with the same snapshot as its inventory
// locks.
func (r *EventRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id int) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// ListByOrganizer retrieves all events owned by one organizer
func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID int) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1 ORDER BY start_time ASC`

	rows, err := r.db.QueryContext(ctx, query, organizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
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
