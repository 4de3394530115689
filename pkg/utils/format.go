// Package utils provides shared helpers for dates, retries and display
// formatting.
package utils

import (
	"fmt"
	"strings"
)

// FormatIndianCurrency formats an amount in rupees with Indian digit grouping
// (lakhs, crores).
func FormatIndianCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "₹" + formatIndianNumber(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// formatIndianNumber groups an integer string as 1,00,00,000.
func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	// First group of 3 from right
	result := s[n-3:]
	s = s[:n-3]

	// Then groups of 2
	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatRatio formats a fraction in [0, 1] as an unsigned percentage.
func FormatRatio(r float64) string {
	return fmt.Sprintf("%.0f%%", r*100)
}

// FormatCount formats a count with Indian digit grouping.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + formatIndianNumber(fmt.Sprintf("%d", -n))
	}
	return formatIndianNumber(fmt.Sprintf("%d", n))
}

// FormatOptional renders a nullable value with format, or "-" when nil.
func FormatOptional(v *float64, format func(float64) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}
