package domain

import "math"

// RoundHalfUp rounds a non-negative amount to 2 decimals, half-up.
func RoundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// TotalPrice computes price-per-page x pages x copies, rounded to
// 2 decimals half-up.
func TotalPrice(pricePerPage float64, pages, copies int) float64 {
	return RoundHalfUp(pricePerPage * float64(pages) * float64(copies))
}
