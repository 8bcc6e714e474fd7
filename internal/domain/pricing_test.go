package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"already two decimals", 2.50, 2.50},
		{"rounds down", 1.2345, 1.23},
		{"rounds up", 1.239, 1.24},
		{"half rounds up", 2.125, 2.13},
		{"zero", 0, 0},
		{"whole number", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundHalfUp(tt.in))
		})
	}
}

func TestTotalPrice(t *testing.T) {
	tests := []struct {
		name         string
		pricePerPage float64
		pages        int
		copies       int
		want         float64
	}{
		{"5 pages x 2 copies at 2.50", 2.50, 5, 2, 25.00},
		{"single page single copy", 1.00, 1, 1, 1.00},
		{"sub-cent product rounds", 0.33, 3, 1, 0.99},
		{"fractional rate", 0.335, 2, 1, 0.67},
		{"large job", 1.25, 200, 3, 750.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalPrice(tt.pricePerPage, tt.pages, tt.copies))
		})
	}
}
