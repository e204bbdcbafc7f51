package scenario

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// typographicReplacer maps the punctuation that shows up in pasted scenario
// lists onto ASCII equivalents before the non-ASCII strip.
var typographicReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "--", // em dash
	"…", "...", // ellipsis
)

var asciiOnly = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// NormalizeASCII rewrites typographic punctuation to ASCII and drops any
// remaining non-ASCII runes. Downstream consumers (prompt rendering, the
// master report) require ASCII-clean text.
func NormalizeASCII(s string) string {
	out, _, err := transform.String(asciiOnly, typographicReplacer.Replace(s))
	if err != nil {
		// transform.String only fails on a short destination buffer, which
		// String manages itself; fall back to the replaced text.
		return typographicReplacer.Replace(s)
	}
	return out
}
