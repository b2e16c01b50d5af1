package apply

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugFold strips diacritics: decompose, drop combining marks, recompose.
var slugFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// makeSlug builds the public URL slug from an event name and its
// assigned identifier. The id is part of the slug, which is why slug
// generation can only happen after the row exists.
func makeSlug(name string, id int64) string {
	folded, _, err := transform.String(slugFold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return fmt.Sprintf("event-%d", id)
	}
	return fmt.Sprintf("%s-%d", slug, id)
}
