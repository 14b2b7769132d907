package text

import (
	"sort"

	"github.com/rivo/uniseg"
)

// Range describes where a span sits in its content.
type Range struct {
	Start, End int
	Style      Style
	Atomic     bool
}

// Ranges returns the rune range of every non-empty span.
func (c Content) Ranges() []Range {
	out := make([]Range, 0, len(c))
	pos := 0
	for _, s := range c {
		n := s.Len()
		if n == 0 {
			continue
		}
		out = append(out, Range{Start: pos, End: pos + n, Style: s.Style, Atomic: s.Atomic})
		pos += n
	}
	return out
}

// Boundaries returns, in increasing order, every offset at which c may be
// cut without splitting a grapheme cluster or an atomic span. The result
// always contains 0 and c.Len().
func (c Content) Boundaries() []int {
	out := []int{0}
	pos := 0
	for _, s := range c {
		n := s.Len()
		if n == 0 {
			continue
		}
		if s.Atomic {
			pos += n
			out = append(out, pos)
			continue
		}
		g := uniseg.NewGraphemes(s.Text)
		for g.Next() {
			pos += len(g.Runes())
			out = append(out, pos)
		}
	}
	return out
}

// IsBoundary reports whether offset is one of c's Boundaries.
func (c Content) IsBoundary(offset int) bool {
	b := c.Boundaries()
	i := sort.SearchInts(b, offset)
	return i < len(b) && b[i] == offset
}

// Inside reports whether offset falls strictly inside a span that must not
// be broken: an atomic span or a styled span longer than one rune.
func (c Content) Inside(offset int) bool {
	for _, r := range c.Ranges() {
		if offset <= r.Start {
			return false
		}
		if offset < r.End && (r.Atomic || (r.Style != Plain && r.End-r.Start > 1)) {
			return true
		}
	}
	return false
}
