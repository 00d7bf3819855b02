package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"ticketmarket/internal/models"
	"ticketmarket/internal/repositories"
)

func setupCartTestDB(t *testing.T) *sql.DB {
	t.Skip("Database tests require test database setup")
	return nil
}

func TestCartService_AddItem_RejectsNonPositiveQuantity(t *testing.T) {
	service := NewCartService(nil, nil)

	for _, qty := range []int{0, -5} {
		_, err := service.AddItem(context.Background(), 1, 1, qty)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	}
}

func TestCartService_SetQuantity_RejectsNegative(t *testing.T) {
	service := NewCartService(nil, nil)

	err := service.SetQuantity(context.Background(), 1, 1, -1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCartService_View(t *testing.T) {
	db := setupCartTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	service := NewCartService(
		repositories.NewCartRepository(db),
		repositories.NewInventoryRepository(db),
	)

	view, err := service.View(context.Background(), 1)
	assert.NoError(t, err)
	assert.NotNil(t, view)
}
