// Package text implements the formatted text model that gets paginated: an
// ordered run of styled spans. Offsets everywhere in this package count runes.
//
// The pagination engine never interprets a span's style. It only measures
// content, slices it at a rune offset and concatenates slices back together.
package text

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Style is an opaque set of inline formatting flags carried by a span.
type Style uint8

const (
	Bold Style = 1 << iota
	Italic
	Code
	Link
)

// Plain is the zero style.
const Plain Style = 0

// Span is a run of text with uniform style.
type Span struct {
	Text  string
	Style Style
	Href  string // link target, only meaningful with Link

	// Atomic spans are never split. Inline code and links are atomic.
	Atomic bool

	// Markup written around Text, as it was spelled in the source. Slicing
	// keeps Open on the first piece and Close on the last.
	Open, Close Markup
}

// Markup is source text that opens or closes styles without being part of
// the content.
type Markup struct {
	Text   string
	Styles Style
}

// Len returns the rune count of the span.
func (s Span) Len() int {
	return utf8.RuneCountInString(s.Text)
}

func (s Span) sameFormat(o Span) bool {
	return s.Style == o.Style && s.Href == o.Href && !s.Atomic && !o.Atomic &&
		s.Close == (Markup{}) && o.Open == (Markup{})
}

// Content is a sequence of styled spans.
type Content []Span

// FromString creates Content from unstyled text.
func FromString(s string) Content {
	if s == "" {
		return nil
	}
	return Content{{Text: s}}
}

// Len returns the total rune count.
func (c Content) Len() int {
	n := 0
	for _, s := range c {
		n += s.Len()
	}
	return n
}

// String returns the unformatted text.
func (c Content) String() string {
	var b strings.Builder
	for _, s := range c {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Runes returns the unformatted text as runes.
func (c Content) Runes() []rune {
	out := make([]rune, 0, c.Len())
	for _, s := range c {
		out = append(out, []rune(s.Text)...)
	}
	return out
}

// IsEmpty reports whether the content holds no text.
func (c Content) IsEmpty() bool {
	for _, s := range c {
		if s.Text != "" {
			return false
		}
	}
	return true
}

// Slice returns the runes in [start, end) with their spans. Offsets are
// clamped. A span cut by either offset keeps its style on both sides, so
// callers that must not cut atomic spans should only slice at Boundaries.
func (c Content) Slice(start, end int) Content {
	if start < 0 {
		start = 0
	}
	if end > c.Len() {
		end = c.Len()
	}
	if start >= end {
		return nil
	}

	var out Content
	pos := 0
	for _, s := range c {
		n := s.Len()
		sStart, sEnd := pos, pos+n
		pos = sEnd
		if sEnd <= start || n == 0 {
			continue
		}
		if sStart >= end {
			break
		}
		lo := max(start, sStart) - sStart
		hi := min(end, sEnd) - sStart
		if lo == 0 && hi == n {
			out = append(out, s)
			continue
		}
		r := []rune(s.Text)
		part := s
		part.Text = string(r[lo:hi])
		if lo > 0 {
			part.Open = Markup{}
		}
		if hi < n {
			part.Close = Markup{}
		}
		out = append(out, part)
	}
	return out
}

// SplitAt returns the content before and after offset.
func (c Content) SplitAt(offset int) (Content, Content) {
	return c.Slice(0, offset), c.Slice(offset, c.Len())
}

// Concat joins contents in order and normalizes the result.
func Concat(parts ...Content) Content {
	var out Content
	for _, p := range parts {
		out = append(out, p...)
	}
	return Normalize(out)
}

// Normalize drops empty spans and merges adjacent non-atomic spans that share
// a format. Two contents with the same runes and per-rune formatting
// normalize to the same value.
func Normalize(c Content) Content {
	var out Content
	for _, s := range c {
		if s.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].sameFormat(s) {
			out[n-1].Text += s.Text
			out[n-1].Close = s.Close
			continue
		}
		out = append(out, s)
	}
	return out
}

// Equal reports whether a and b hold the same text with the same formatting
// and markup.
func Equal(a, b Content) bool {
	return slices.Equal(Normalize(a), Normalize(b))
}

// Equivalent reports whether a and b hold the same text with the same
// formatting, however their markup is spelled.
func Equivalent(a, b Content) bool {
	return slices.Equal(Normalize(StripMarkup(a)), Normalize(StripMarkup(b)))
}

// StripMarkup returns c without source markup.
func StripMarkup(c Content) Content {
	out := c.Clone()
	for i := range out {
		out[i].Open, out[i].Close = Markup{}, Markup{}
	}
	return out
}

// KeepMarkup copies the markup of orig onto the spans at either end of
// edited that are unchanged from orig. Markdown of a slice writes default
// markers where the slice cut a style; this undoes them on the way back.
func KeepMarkup(orig, edited Content) Content {
	orig, edited = Normalize(orig), Normalize(edited.Clone())
	same := func(a, b Span) bool {
		return a.Text == b.Text && a.Style == b.Style && a.Href == b.Href && a.Atomic == b.Atomic
	}
	n := min(len(orig), len(edited))
	for i := 0; i < n && same(orig[i], edited[i]); i++ {
		edited[i].Open, edited[i].Close = orig[i].Open, orig[i].Close
	}
	for i := 1; i <= n && same(orig[len(orig)-i], edited[len(edited)-i]); i++ {
		o, e := &orig[len(orig)-i], &edited[len(edited)-i]
		e.Open, e.Close = o.Open, o.Close
	}
	return Normalize(edited)
}

// Clone returns a copy that shares no backing array with c.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	return slices.Clone(c)
}
