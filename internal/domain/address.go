package domain

import "strings"

// NormalizeAddress returns the canonical form used to compare wallet addresses.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
