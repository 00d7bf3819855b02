package models

import (
	"errors"
	"strings"
	"testing"
)

func TestTicketTypeCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     TicketTypeCreateRequest
		wantErr bool
	}{
		{
			name: "valid ticket type",
			req: TicketTypeCreateRequest{
				EventID:  1,
				Label:    "General Admission",
				Price:    2500,
				Quantity: 100,
			},
			wantErr: false,
		},
		{
			name: "missing event",
			req: TicketTypeCreateRequest{
				Label:    "General Admission",
				Price:    2500,
				Quantity: 100,
			},
			wantErr: true,
		},
		{
			name: "blank label",
			req: TicketTypeCreateRequest{
				EventID:  1,
				Label:    "   ",
				Price:    2500,
				Quantity: 100,
			},
			wantErr: true,
		},
		{
			name: "label too long",
			req: TicketTypeCreateRequest{
				EventID:  1,
				Label:    strings.Repeat("x", 101),
				Price:    2500,
				Quantity: 100,
			},
			wantErr: true,
		},
		{
			name: "negative price",
			req: TicketTypeCreateRequest{
				EventID:  1,
				Label:    "General Admission",
				Price:    -100,
				Quantity: 100,
			},
			wantErr: true,
		},
		{
			name: "price above cap",
			req: TicketTypeCreateRequest{
				EventID:  1,
				Label:    "General Admission",
				Price:    1000001,
				Quantity: 100,
			},
			wantErr: true,
		},
		{
			name: "zero quantity",
			req: TicketTypeCreateRequest{
				EventID:  1,
				Label:    "General Admission",
				Price:    2500,
				Quantity: 0,
			},
			wantErr: true,
		},
		{
			name: "quantity above cap",
			req: TicketTypeCreateRequest{
				EventID:  1,
				Label:    "General Admission",
				Price:    2500,
				Quantity: 100001,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("TicketTypeCreateRequest.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("TicketTypeCreateRequest.Validate() error %v should wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestTicketType_Stock(t *testing.T) {
	tt := TicketType{QuantityTotal: 100, QuantityLeft: 3}

	if tt.IsSoldOut() {
		t.Error("expected stock remaining")
	}
	if !tt.HasStock(3) {
		t.Error("expected HasStock(3) to be true")
	}
	if tt.HasStock(4) {
		t.Error("expected HasStock(4) to be false")
	}
	if got := tt.Sold(); got != 97 {
		t.Errorf("Sold() = %d, want 97", got)
	}

	tt.QuantityLeft = 0
	if !tt.IsSoldOut() {
		t.Error("expected sold out")
	}
}

func TestTicket_CanBeRefunded(t *testing.T) {
	active := Ticket{Status: TicketActive}
	if !active.CanBeRefunded() {
		t.Error("expected active ticket to be refundable")
	}

	refunded := Ticket{Status: TicketRefunded}
	if refunded.CanBeRefunded() {
		t.Error("expected refunded ticket not to be refundable")
	}
}
