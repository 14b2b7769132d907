package measure

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/quire/text"
	"github.com/muesli/termenv"
)

// Glamour measures content by rendering it as markdown with glamour and
// counting the resulting terminal lines. This is a real layout pass: block
// margins, code block padding and list indentation all count.
type Glamour struct {
	LineHeight float64 // defaults to 1

	mu  sync.Mutex
	r   *glamour.TermRenderer
	err error
}

// NewGlamour creates a glamour oracle rendering at the given word-wrap
// width. Extra options are applied after the defaults, so a style option
// may be passed in. Colors never affect height, so rendering always uses the
// ASCII profile.
func NewGlamour(width int, opts ...glamour.TermRendererOption) *Glamour {
	g := &Glamour{}
	if width <= 0 {
		g.err = fmt.Errorf("invalid width %d", width)
		return g
	}
	opts = append([]glamour.TermRendererOption{
		glamour.WithColorProfile(termenv.Ascii),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	}, opts...)

	g.r, g.err = glamour.NewTermRenderer(opts...)
	return g
}

// Measure implements Oracle.
func (g *Glamour) Measure(c text.Content) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.r == nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, g.err)
	}
	if c.IsEmpty() {
		return 0, nil
	}

	out, err := g.r.Render(text.Markdown(c))
	if err != nil {
		return 0, fmt.Errorf("rendering content: %w", err)
	}

	lh := g.LineHeight
	if lh <= 0 {
		lh = 1
	}
	out = strings.Trim(out, "\n")
	if out == "" {
		return 0, nil
	}
	return float64(strings.Count(out, "\n")+1) * lh, nil
}
