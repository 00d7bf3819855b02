package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Card carries the raw card fields the gateway verifies. It is accepted
// at the boundary, passed to the gateway once, and never persisted.
type Card struct {
	Number string `json:"number"`
	Holder string `json:"holder"`
	CVV    string `json:"cvv"`
	Expiry string `json:"expiry"` // MM/YY
}

var (
	cardCVVRegex    = regexp.MustCompile(`^\d{3,4}$`)
	cardExpiryRegex = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

// Validate validates the card fields: number checksum, holder name,
// CVV shape and a non-expired expiry date.
func (c *Card) Validate() error {
	if err := validateCardNumber(c.NormalizedNumber()); err != nil {
		return err
	}

	if strings.TrimSpace(c.Holder) == "" {
		return fmt.Errorf("card holder name is required: %w", ErrInvalidInput)
	}

	if !cardCVVRegex.MatchString(c.CVV) {
		return fmt.Errorf("card CVV must be 3 or 4 digits: %w", ErrInvalidInput)
	}

	if err := validateCardExpiry(c.Expiry, time.Now()); err != nil {
		return err
	}

	return nil
}

// NormalizedNumber returns the card number with spaces and dashes removed
func (c *Card) NormalizedNumber() string {
	replacer := strings.NewReplacer(" ", "", "-", "")
	return replacer.Replace(c.Number)
}

// LastFour returns the trailing four digits for display
func (c *Card) LastFour() string {
	n := c.NormalizedNumber()
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

// validateCardNumber checks length and the Luhn checksum
func validateCardNumber(number string) error {
	if len(number) < 12 || len(number) > 19 {
		return fmt.Errorf("card number must be between 12 and 19 digits: %w", ErrInvalidInput)
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := number[i]
		if d < '0' || d > '9' {
			return fmt.Errorf("card number must contain only digits: %w", ErrInvalidInput)
		}
		n := int(d - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}

	if sum%10 != 0 {
		return fmt.Errorf("card number failed checksum: %w", ErrInvalidInput)
	}

	return nil
}

// validateCardExpiry checks the MM/YY format and that the card has not
// expired. A card is valid through the last day of its expiry month.
func validateCardExpiry(expiry string, now time.Time) error {
	if !cardExpiryRegex.MatchString(expiry) {
		return fmt.Errorf("card expiry must be in MM/YY format: %w", ErrInvalidInput)
	}

	exp, err := time.Parse("01/06", expiry)
	if err != nil {
		return fmt.Errorf("invalid card expiry date: %w", ErrInvalidInput)
	}

	endOfMonth := exp.AddDate(0, 1, 0)
	if !now.Before(endOfMonth) {
		return fmt.Errorf("card has expired: %w", ErrInvalidInput)
	}

	return nil
}
