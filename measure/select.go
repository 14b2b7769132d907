package measure

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Oracle names accepted by New.
const (
	NameWrap    = "wrap"
	NameGlamour = "glamour"
)

// ErrUnknownOracle is returned by New for a name it does not know.
var ErrUnknownOracle = errors.New("unknown oracle")

// New returns the named oracle laid out at width cells. Glamour options are
// ignored by the wrap oracle.
func New(name string, width int, opts ...glamour.TermRendererOption) (Oracle, error) {
	switch name {
	case NameWrap, "":
		return Wrap{Width: width}, nil
	case NameGlamour:
		return NewGlamour(width, opts...), nil
	default:
		return nil, fmt.Errorf("%w %q: use %q or %q", ErrUnknownOracle, name, NameWrap, NameGlamour)
	}
}
