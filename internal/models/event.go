package models

import (
	"fmt"
	"strings"
	"time"
)

// Event represents an event that tickets are sold for. Only the fields
// the transactional core needs are modelled here: the purchase window,
// the organizer to pay out, and the settlement marker.
type Event struct {
	ID          int        `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	OrganizerID int        `json:"organizer_id" db:"organizer_id"`
	StartTime   time.Time  `json:"start_time" db:"start_time"`
	EndTime     time.Time  `json:"end_time" db:"end_time"`
	SettledAt   *time.Time `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// EventCreateRequest represents the data needed to create a new event
type EventCreateRequest struct {
	Title       string    `json:"title"`
	OrganizerID int       `json:"organizer_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// Validate validates the event creation data
func (req *EventCreateRequest) Validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("event title is required: %w", ErrInvalidInput)
	}

	if len(req.Title) > 200 {
		return fmt.Errorf("event title must be less than 200 characters: %w", ErrInvalidInput)
	}

	if req.OrganizerID <= 0 {
		return fmt.Errorf("organizer is required: %w", ErrInvalidInput)
	}

	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return fmt.Errorf("event start and end times are required: %w", ErrInvalidInput)
	}

	if !req.StartTime.Before(req.EndTime) {
		return fmt.Errorf("event start time must be before end time: %w", ErrInvalidInput)
	}

	return nil
}

// IsPurchasable returns true if tickets for the event can still be bought.
// Sales close once the event has started.
func (e *Event) IsPurchasable(now time.Time) bool {
	return !now.After(e.StartTime)
}

// HasEnded returns true if the event's end time has passed
func (e *Event) HasEnded(now time.Time) bool {
	return now.After(e.EndTime)
}

// IsSettled returns true if the organizer payout for the event has been issued
func (e *Event) IsSettled() bool {
	return e.SettledAt != nil
}
