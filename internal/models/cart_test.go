package models

import "testing"

func TestCartView_TotalCents(t *testing.T) {
	view := CartView{
		Cart: &Cart{ID: 1, UserID: 7},
		Lines: []*CartLine{
			{TicketTypeID: 1, Quantity: 2, UnitPrice: 2500},
			{TicketTypeID: 2, Quantity: 1, UnitPrice: 10000},
		},
	}

	if got := view.TotalCents(); got != 15000 {
		t.Errorf("TotalCents() = %d, want 15000", got)
	}
}

func TestCartLine_Subtotal(t *testing.T) {
	line := CartLine{Quantity: 3, UnitPrice: 1500}
	if got := line.Subtotal(); got != 4500 {
		t.Errorf("Subtotal() = %d, want 4500", got)
	}
}

func TestCartView_TotalCents_Empty(t *testing.T) {
	view := CartView{Cart: &Cart{ID: 1}}
	if got := view.TotalCents(); got != 0 {
		t.Errorf("TotalCents() = %d, want 0", got)
	}
}
