package paginate

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/quire/text"
)

// DefaultSnapLookback is how many runes Snap scans back by default.
const DefaultSnapLookback = 100

const (
	sentenceEnders = ".!?…"
	closers        = "\"')]}»”’"
)

// Snap moves a raw split offset back to the nearest preferred break within
// lookback runes. Preference order is a paragraph break, the whitespace after
// a sentence, then any whitespace. The result always sits after the break
// characters, so the next page starts with text. Offsets inside grapheme
// clusters, atomic spans or styled spans are never chosen. When nothing
// qualifies, raw is returned unchanged.
func Snap(c text.Content, raw, lookback int) int {
	r := c.Runes()
	if raw <= 0 || raw > len(r) || lookback <= 0 {
		return raw
	}

	bounds := make(map[int]bool)
	for _, b := range c.Boundaries() {
		bounds[b] = true
	}
	floor := max(1, raw-lookback)
	ok := func(o int) bool {
		return bounds[o] && !c.Inside(o)
	}

	// Priority 1: paragraph boundaries
	for o := raw; o >= floor; o-- {
		if o >= 2 && r[o-1] == '\n' && r[o-2] == '\n' && ok(o) {
			return o
		}
	}

	// Priority 2: whitespace following the end of a sentence
	for o := raw; o >= floor; o-- {
		if o >= 2 && unicode.IsSpace(r[o-1]) && endsSentence(r[:o-1]) && ok(o) {
			return o
		}
	}

	// Priority 3: any whitespace
	for o := raw; o >= floor; o-- {
		if unicode.IsSpace(r[o-1]) && ok(o) {
			return o
		}
	}

	return raw
}

// endsSentence reports whether r ends with sentence punctuation, allowing
// for closing quotes and brackets after it.
func endsSentence(r []rune) bool {
	i := len(r) - 1
	for i >= 0 && strings.ContainsRune(closers, r[i]) {
		i--
	}
	return i >= 0 && strings.ContainsRune(sentenceEnders, r[i])
}
