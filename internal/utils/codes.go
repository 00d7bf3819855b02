package utils

import (
	"crypto/rand"
	"fmt"
)

const ticketCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateTicketCode returns a fixed-length random code for a minted
// ticket. The alphabet omits easily confused characters (0/O, 1/I) so
// codes stay readable at the door. Uniqueness is enforced by the tickets
// table; callers retry on collision.
func GenerateTicketCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = ticketCodeAlphabet[int(b)%len(ticketCodeAlphabet)]
	}

	return string(buf), nil
}
