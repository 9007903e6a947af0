package ident

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical normalizes a string for hashing and comparison.
//
// Normalization is NFKC (compatibility decomposition followed by canonical
// recomposition) with internal whitespace runs collapsed to single spaces
// and leading/trailing whitespace trimmed. Two strings that differ only in
// cosmetic form (fullwidth digits, ligatures, doubled spaces) canonicalize
// to the same value and therefore hash to the same identifier.
func Canonical(s string) string {
	if s == "" {
		return ""
	}
	normalized := norm.NFKC.String(s)
	return strings.Join(strings.Fields(normalized), " ")
}
