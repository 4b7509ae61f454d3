package rules

import (
	"fmt"
	"math"
)

// Display units.
const (
	Crore int64 = 10_000_000
	Lakh  int64 = 100_000
)

// FormatMoney renders amount in crore (two decimals) or lakh (whole).
func FormatMoney(amount int64) string {
	if amount >= Crore {
		return fmt.Sprintf("₹%.2f Cr", float64(amount)/float64(Crore))
	}
	return fmt.Sprintf("₹%.0f L", math.Round(float64(amount)/float64(Lakh)))
}
