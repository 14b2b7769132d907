// Package measure provides measurement oracles: the layout pass that tells
// the paginator how tall a slice of content renders.
//
// Heights are plain float64 values in whatever unit the page capacity is
// expressed in. An oracle may be expensive, so callers cache results.
package measure

import (
	"errors"
	"sync/atomic"

	"github.com/charmbracelet/quire/text"
)

// ErrUnavailable is returned by an oracle that cannot measure right now,
// for example because it is not attached to a rendering surface yet.
var ErrUnavailable = errors.New("measurement oracle unavailable")

// Oracle reports the rendered height of content.
type Oracle interface {
	Measure(c text.Content) (float64, error)
}

// Func adapts an ordinary function to the Oracle interface.
type Func func(c text.Content) (float64, error)

// Measure calls f(c).
func (f Func) Measure(c text.Content) (float64, error) {
	return f(c)
}

// Counter wraps an oracle and counts how often it is called.
type Counter struct {
	Oracle Oracle
	calls  atomic.Int64
}

// NewCounter returns a Counter around o.
func NewCounter(o Oracle) *Counter {
	return &Counter{Oracle: o}
}

func (c *Counter) Measure(content text.Content) (float64, error) {
	c.calls.Add(1)
	if c.Oracle == nil {
		return 0, ErrUnavailable
	}
	return c.Oracle.Measure(content)
}

// Calls returns the number of Measure calls so far.
func (c *Counter) Calls() int64 {
	return c.calls.Load()
}

// Reset zeroes the call count.
func (c *Counter) Reset() {
	c.calls.Store(0)
}
