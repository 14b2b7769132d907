package paginate

import (
	"github.com/charmbracelet/quire/measure"
	"github.com/charmbracelet/quire/text"
)

// Split is the result of a split search.
type Split struct {
	// Offset is the length of the prefix that stays on the page.
	Offset int

	// Degenerate is set when not even the first indivisible unit fits. Offset
	// then covers exactly that unit, and the page holding it is allowed to
	// exceed capacity.
	Degenerate bool

	// Height is the measured height of the prefix when Measured is set.
	Height   float64
	Measured bool
}

// FindSplit returns the longest prefix of c, cut at a legal boundary, whose
// measured height is at most capacity. It assumes c as a whole does not fit
// and never measures it; the search costs O(log n) oracle calls for n
// indivisible units.
func FindSplit(o measure.Oracle, c text.Content, capacity float64) (Split, error) {
	b := c.Boundaries()
	if len(b) < 2 {
		return Split{}, nil
	}

	// b[lo] always fits (the empty prefix does), b[hi] never does.
	lo, hi := 0, len(b)-1
	var loH, hiH float64
	hiKnown := false
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		h, err := o.Measure(c.Slice(0, b[mid]))
		if err != nil {
			return Split{}, err
		}
		if h <= capacity {
			lo, loH = mid, h
		} else {
			hi, hiH, hiKnown = mid, h, true
		}
	}

	if lo == 0 {
		return Split{Offset: b[1], Degenerate: true, Height: hiH, Measured: hiKnown && hi == 1}, nil
	}
	return Split{Offset: b[lo], Height: loH, Measured: true}, nil
}
