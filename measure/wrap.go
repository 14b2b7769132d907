package measure

import (
	"strings"

	"github.com/charmbracelet/quire/text"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// Wrap measures content as plain text word-wrapped to a fixed number of
// terminal cells. Height is the number of wrapped lines times LineHeight.
type Wrap struct {
	Width      int
	LineHeight float64 // defaults to 1
}

// Measure implements Oracle. A Wrap without a width is not attached to a
// surface and reports ErrUnavailable.
func (w Wrap) Measure(c text.Content) (float64, error) {
	if w.Width <= 0 {
		return 0, ErrUnavailable
	}
	lh := w.LineHeight
	if lh <= 0 {
		lh = 1
	}
	return float64(Lines(c.String(), w.Width)) * lh, nil
}

// Lines returns how many lines s occupies when word-wrapped at width cells.
// Words longer than the width are broken. A trailing newline does not start
// a new line.
func Lines(s string, width int) int {
	if s == "" {
		return 0
	}
	if !strings.Contains(s, "\n") && runewidth.StringWidth(s) <= width {
		return 1
	}

	wrapped := wrap.String(wordwrap.String(s, width), width)
	n := strings.Count(wrapped, "\n") + 1
	if strings.HasSuffix(wrapped, "\n") {
		n--
	}
	return n
}
