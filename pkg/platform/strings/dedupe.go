// Package strings normalizes operator-supplied string lists (surcharge codes, batch IDs).
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and blanks, trimming each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  a ", "b", "a", "", "  "}) // []string{"a", "b"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimUpper is DedupeAndTrim with upper-casing, for carrier surcharge codes
// that arrive in mixed case from invoices.
//
//	DedupeAndTrimUpper([]string{" residential", "Fuel", "RESIDENTIAL"}) // []string{"RESIDENTIAL", "FUEL"}
func DedupeAndTrimUpper(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
