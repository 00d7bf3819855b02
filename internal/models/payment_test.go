package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestGeneratePaymentReference(t *testing.T) {
	ref := GeneratePaymentReference()

	if !strings.HasPrefix(ref, "PAY-") {
		t.Errorf("reference %q should start with PAY-", ref)
	}
	if !paymentReferenceRegex.MatchString(ref) {
		t.Errorf("reference %q does not match expected format", ref)
	}
}

func TestGeneratePayoutReference(t *testing.T) {
	ref := GeneratePayoutReference()

	if !strings.HasPrefix(ref, "PO-") {
		t.Errorf("reference %q should start with PO-", ref)
	}
	if !paymentReferenceRegex.MatchString(ref) {
		t.Errorf("reference %q does not match expected format", ref)
	}
}

func TestPayment_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payment Payment
		wantErr bool
	}{
		{
			name:    "valid payment",
			payment: Payment{Reference: "PAY-20260101-123456", Amount: 5000},
			wantErr: false,
		},
		{
			name:    "zero amount",
			payment: Payment{Reference: "PAY-20260101-123456", Amount: 0},
			wantErr: true,
		},
		{
			name:    "bad reference",
			payment: Payment{Reference: "ORDER-1", Amount: 5000},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payment.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Payment.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Payment.Validate() error %v should wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestIsDeclined(t *testing.T) {
	declined := &DeclinedError{Op: "authorize", Reason: DeclineInsufficientFunds}
	wrapped := fmt.Errorf("checkout failed: %w", declined)

	de, ok := IsDeclined(wrapped)
	if !ok {
		t.Fatal("expected wrapped decline to be detected")
	}
	if de.Reason != DeclineInsufficientFunds {
		t.Errorf("Reason = %q, want %q", de.Reason, DeclineInsufficientFunds)
	}

	if _, ok := IsDeclined(errors.New("plain error")); ok {
		t.Error("expected plain error not to be a decline")
	}
}

func TestConflictSentinels(t *testing.T) {
	for _, err := range []error{ErrInsufficientStock, ErrSalesClosed, ErrDuplicateEntry} {
		if !errors.Is(err, ErrConflict) {
			t.Errorf("%v should wrap ErrConflict", err)
		}
	}
}
