package workbook

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName brings a worker name to the form used for comparisons:
// NFC composed, trimmed, inner whitespace collapsed to single spaces.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
