package models

import (
	"errors"
	"testing"
	"time"
)

func TestCard_Validate(t *testing.T) {
	futureExpiry := time.Now().AddDate(1, 0, 0).Format("01/06")

	tests := []struct {
		name    string
		card    Card
		wantErr bool
	}{
		{
			name: "valid card",
			card: Card{
				Number: "4242424242424242",
				Holder: "Jane Doe",
				CVV:    "123",
				Expiry: futureExpiry,
			},
			wantErr: false,
		},
		{
			name: "valid card with spaces and four digit cvv",
			card: Card{
				Number: "4242 4242 4242 4242",
				Holder: "Jane Doe",
				CVV:    "1234",
				Expiry: futureExpiry,
			},
			wantErr: false,
		},
		{
			name: "failed checksum",
			card: Card{
				Number: "4242424242424241",
				Holder: "Jane Doe",
				CVV:    "123",
				Expiry: futureExpiry,
			},
			wantErr: true,
		},
		{
			name: "number too short",
			card: Card{
				Number: "42424242",
				Holder: "Jane Doe",
				CVV:    "123",
				Expiry: futureExpiry,
			},
			wantErr: true,
		},
		{
			name: "non-digit characters",
			card: Card{
				Number: "42424242424242ab",
				Holder: "Jane Doe",
				CVV:    "123",
				Expiry: futureExpiry,
			},
			wantErr: true,
		},
		{
			name: "missing holder",
			card: Card{
				Number: "4242424242424242",
				Holder: "   ",
				CVV:    "123",
				Expiry: futureExpiry,
			},
			wantErr: true,
		},
		{
			name: "bad cvv",
			card: Card{
				Number: "4242424242424242",
				Holder: "Jane Doe",
				CVV:    "12",
				Expiry: futureExpiry,
			},
			wantErr: true,
		},
		{
			name: "bad expiry format",
			card: Card{
				Number: "4242424242424242",
				Holder: "Jane Doe",
				CVV:    "123",
				Expiry: "13/30",
			},
			wantErr: true,
		},
		{
			name: "expired card",
			card: Card{
				Number: "4242424242424242",
				Holder: "Jane Doe",
				CVV:    "123",
				Expiry: "01/20",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Card.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			// Validation failures must carry ErrInvalidInput so the
			// HTTP layer maps them to 400, not 500.
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Card.Validate() error %v should wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestValidateCardExpiry_EndOfMonth(t *testing.T) {
	// A card expiring 06/25 is still valid on June 30th 2025 and
	// invalid on July 1st.
	lastDay := time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)
	if err := validateCardExpiry("06/25", lastDay); err != nil {
		t.Errorf("expected card valid through end of expiry month, got %v", err)
	}

	dayAfter := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if err := validateCardExpiry("06/25", dayAfter); err == nil {
		t.Error("expected expired card to fail validation")
	}
}

func TestCard_NormalizedNumber(t *testing.T) {
	card := Card{Number: "4242-4242 4242-4242"}
	if got := card.NormalizedNumber(); got != "4242424242424242" {
		t.Errorf("NormalizedNumber() = %q, want %q", got, "4242424242424242")
	}
}

func TestCard_LastFour(t *testing.T) {
	card := Card{Number: "4242 4242 4242 4242"}
	if got := card.LastFour(); got != "4242" {
		t.Errorf("LastFour() = %q, want %q", got, "4242")
	}
}
