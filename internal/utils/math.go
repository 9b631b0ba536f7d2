package utils

import (
	"fmt"
	"math"
)

// Pct returns num/den as a percentage rounded to one decimal.
// A zero or negative denominator yields 0, never NaN/Inf.
func Pct(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return Round1(float64(num) / float64(den) * 100)
}

// PctStr renders Pct as "NN.N%" for dashboard tables.
func PctStr(num, den int) string {
	return fmt.Sprintf("%.1f%%", Pct(num, den))
}

func Round1(f float64) float64 { return math.Round(f*10) / 10 }
func Round2(f float64) float64 { return math.Round(f*100) / 100 }

// SafeDiv is the zero-denominator-safe division used for cost figures.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
