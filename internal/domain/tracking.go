package domain

import (
	"crypto/rand"
	"fmt"
)

// trackingAlphabet omits 0/O/1/I to keep codes unambiguous when read
// aloud or typed from a printed receipt.
const trackingAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const trackingCodeLength = 8

// NewTrackingCode generates a short customer-facing job code.
func NewTrackingCode() (string, error) {
	buf := make([]byte, trackingCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate tracking code: %w", err)
	}
	for i, b := range buf {
		buf[i] = trackingAlphabet[int(b)%len(trackingAlphabet)]
	}
	return string(buf), nil
}
