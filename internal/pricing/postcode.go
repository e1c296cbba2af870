package pricing

import "strings"

// inwardLen is the fixed length of the inward part of a UK postcode ("1AA").
const inwardLen = 3

// NormalizePostcode uppercases the postcode and drops all whitespace.
func NormalizePostcode(postcode string) string {
	return strings.ToUpper(strings.Join(strings.Fields(postcode), ""))
}

// OutwardCode returns the part of a normalized postcode before the inward
// code. Values too short to carry an inward code are returned unchanged.
func OutwardCode(normalized string) string {
	if len(normalized) <= inwardLen {
		return normalized
	}
	return normalized[:len(normalized)-inwardLen]
}

// matchesOutward reports whether outward lies in the area or district named by
// prefix. The match has to end on a letter/digit boundary, so "BN1" covers BN1
// but not BN17, and "B" covers B1 but not BN1.
func matchesOutward(outward, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(outward, prefix) {
		return false
	}
	if len(outward) == len(prefix) {
		return true
	}
	return isDigit(prefix[len(prefix)-1]) != isDigit(outward[len(prefix)])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
