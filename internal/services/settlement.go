package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketmarket/internal/models"
)

// sweepLockKey guards the sweep across processes
const sweepLockKey = "ticketmarket:settlement:sweep"

// SettlementStore is the data access the sweeper needs
type SettlementStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]*models.Event, error)
	LockEvent(ctx context.Context, tx *sql.Tx, id int) (*models.Event, error)
	DirectRevenue(ctx context.Context, tx *sql.Tx, eventID int) (int, error)
	TicketRevenue(ctx context.Context, tx *sql.Tx, eventID int) (int, error)
	CreatePayout(ctx context.Context, tx *sql.Tx, payout *models.Payout) (*models.Payout, error)
	MarkSettled(ctx context.Context, tx *sql.Tx, eventID int, at time.Time) error
	DeleteEvent(ctx context.Context, eventID int) error
}

// SettlementService pays out organizers of ended events. Each event is
// settled in its own transaction under the event's row lock, so a
// crashed or concurrent sweep can always be re-run safely.
type SettlementService struct {
	db          *sql.DB
	store       SettlementStore
	redisClient *redis.Client
	interval    time.Duration
	lockTTL     time.Duration
}

// NewSettlementService creates a new settlement service. redisClient
// may be nil; the sweep then runs without cross-process exclusion.
func NewSettlementService(
	db *sql.DB,
	store SettlementStore,
	redisClient *redis.Client,
	interval time.Duration,
	lockTTL time.Duration,
) *SettlementService {
	return &SettlementService{
		db:          db,
		store:       store,
		redisClient: redisClient,
		interval:    interval,
		lockTTL:     lockTTL,
	}
}

// Run sweeps on a fixed interval until the context is cancelled
func (s *SettlementService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("settlement sweeper started (interval %s)", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("settlement sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				log.Printf("Warning: settlement sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce settles every expired event. One event failing is logged
// and skipped; the sweep keeps going.
func (s *SettlementService) SweepOnce(ctx context.Context) error {
	release, acquired, err := s.acquireSweepLock(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		log.Printf("settlement sweep skipped: another sweeper holds the lock")
		return nil
	}
	defer release()

	events, err := s.store.ListExpired(ctx, time.Now())
	if err != nil {
		return err
	}

	settled := 0
	for _, event := range events {
		if err := s.settleEvent(ctx, event); err != nil {
			log.Printf("Warning: failed to settle event %d (%s): %v", event.ID, event.Title, err)
			continue
		}
		settled++
	}

	if len(events) > 0 {
		log.Printf("settlement sweep done: %d/%d events settled", settled, len(events))
	}

	return nil
}

// settleEvent pays out one event and then deletes it. The payout and
// the settled marker commit together; the delete runs afterwards, and
// a failed delete is retried because settled events stay in the sweep
// until they are gone.
func (s *SettlementService) settleEvent(ctx context.Context, event *models.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settlement transaction: %w", err)
	}
	defer tx.Rollback()

	locked, err := s.store.LockEvent(ctx, tx, event.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if locked.IsSettled() {
		// The payout is already committed; only the deletion is
		// outstanding from an earlier pass.
		tx.Rollback()
		if err := s.store.DeleteEvent(ctx, locked.ID); err != nil {
			return fmt.Errorf("failed to delete settled event: %w", err)
		}
		return nil
	}

	direct, err := s.store.DirectRevenue(ctx, tx, event.ID)
	if err != nil {
		return err
	}
	viaTickets, err := s.store.TicketRevenue(ctx, tx, event.ID)
	if err != nil {
		return err
	}

	// Mixed-event payments are only tagged on the ticket path, single
	// event payments on both. The larger sum is the true revenue.
	revenue := direct
	if viaTickets > revenue {
		revenue = viaTickets
	}

	if revenue > 0 {
		_, err = s.store.CreatePayout(ctx, tx, &models.Payout{
			OrganizerID: locked.OrganizerID,
			EventID:     locked.ID,
			Reference:   models.GeneratePayoutReference(),
			Amount:      revenue,
		})
		if err != nil {
			return err
		}
	}

	if err := s.store.MarkSettled(ctx, tx, locked.ID, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}

	log.Printf("settled event %d (%s): payout %d to organizer %d", locked.ID, locked.Title, revenue, locked.OrganizerID)

	if err := s.store.DeleteEvent(ctx, locked.ID); err != nil {
		log.Printf("Warning: failed to delete settled event %d, will retry next sweep: %v", locked.ID, err)
	}

	return nil
}

// acquireSweepLock takes the Redis SETNX lock when Redis is
// configured. Without Redis the sweep proceeds unguarded; the
// per-event row locks still make it safe, just less efficient.
func (s *SettlementService) acquireSweepLock(ctx context.Context) (func(), bool, error) {
	if s.redisClient == nil {
		return func() {}, true, nil
	}

	ok, err := s.redisClient.SetNX(ctx, sweepLockKey, "1", s.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		if err := s.redisClient.Del(context.Background(), sweepLockKey).Err(); err != nil {
			log.Printf("Warning: failed to release sweep lock: %v", err)
		}
	}
	return release, true, nil
}
