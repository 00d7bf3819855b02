package services

import (
	"context"
	"fmt"
	"time"

	"ticketmarket/internal/models"
	"ticketmarket/internal/repositories"
)

// CartService manages per-user carts. Prices are snapshotted when a
// line is added and never recomputed afterwards.
type CartService struct {
	cartRepo      *repositories.CartRepository
	inventoryRepo *repositories.InventoryRepository
}

// NewCartService creates a new cart service
func NewCartService(cartRepo *repositories.CartRepository, inventoryRepo *repositories.InventoryRepository) *CartService {
	return &CartService{
		cartRepo:      cartRepo,
		inventoryRepo: inventoryRepo,
	}
}

// AddItem adds quantity of a ticket type to the user's cart, creating
// the cart and the line as needed. An existing line accumulates; its
// original price snapshot is kept.
func (s *CartService) AddItem(ctx context.Context, userID, ticketTypeID, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be greater than 0: %w", models.ErrInvalidInput)
	}

	ticketType, err := s.inventoryRepo.GetTicketTypeByID(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}

	// Provisional check only. The binding check happens under lock at
	// checkout.
	if quantity > ticketType.QuantityLeft {
		return nil, fmt.Errorf("only %d tickets left: %w", ticketType.QuantityLeft, models.ErrInsufficientStock)
	}

	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	line, err := s.cartRepo.UpsertLine(ctx, cart.ID, ticketTypeID, quantity, ticketType.Price)
	if err != nil {
		return nil, err
	}

	return line, nil
}

// SetQuantity overwrites a line's quantity. Zero removes the line.
func (s *CartService) SetQuantity(ctx context.Context, userID, ticketTypeID, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative: %w", models.ErrInvalidInput)
	}

	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	if quantity == 0 {
		return s.cartRepo.DeleteLine(ctx, cart.ID, ticketTypeID)
	}

	ticketType, err := s.inventoryRepo.GetTicketTypeByID(ctx, ticketTypeID)
	if err != nil {
		return err
	}
	if quantity > ticketType.QuantityLeft {
		return fmt.Errorf("only %d tickets left: %w", ticketType.QuantityLeft, models.ErrInsufficientStock)
	}

	return s.cartRepo.SetLineQuantity(ctx, cart.ID, ticketTypeID, quantity)
}

// View returns the cart with dead lines removed. Lines whose event has
// already started are deleted as a side effect so the total only ever
// covers purchasable tickets.
func (s *CartService) View(ctx context.Context, userID int) (*models.CartView, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.cartRepo.PruneUnpurchasable(ctx, cart.ID, time.Now()); err != nil {
		return nil, err
	}

	lines, err := s.cartRepo.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	return &models.CartView{Cart: cart, Lines: lines}, nil
}

// Clear empties the user's cart. Clearing an empty cart succeeds.
func (s *CartService) Clear(ctx context.Context, userID int) error {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	return s.cartRepo.Clear(ctx, cart.ID)
}
