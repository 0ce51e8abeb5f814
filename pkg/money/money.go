// Package money renders float totals for display
// Arithmetic stays in float64; only presentation goes through decimal
package money

import "github.com/shopspring/decimal"

// Fixed formats v with the given number of decimal places
func Fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Yen formats v with two decimals and a currency suffix
func Yen(v float64) string {
	return Fixed(v, 2) + " JPY"
}

// Negated formats a deduction, e.g. "-407.50"
func Negated(v float64) string {
	return decimal.NewFromFloat(v).Neg().StringFixed(2)
}
