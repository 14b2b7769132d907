package paginate

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/quire/measure"
	"github.com/charmbracelet/quire/text"
)

// Config configures an Engine.
type Config struct {
	Capacity     float64 // page height, in oracle units
	Epsilon      float64 // a page may exceed Capacity by this much before it is split
	SnapLookback int     // runes Snap may scan back; 0 means DefaultSnapLookback
	NearlyEmpty  int     // pages with at most this many runes merge backward unconditionally

	// Oracle measures content. A nil oracle starts the engine in single-page
	// mode until RegisterOracle is called.
	Oracle measure.Oracle

	// Logger receives debug output for splits and merges and a warning when
	// the engine degrades. Defaults to the charm default logger.
	Logger *log.Logger

	// OnDocumentChanged is called once per completed reflow pass with the
	// whole document.
	OnDocumentChanged func(doc text.Content)

	// OnCursorRelocated is called once per completed reflow pass with the
	// caret's projection onto the new partition.
	OnCursorRelocated func(page, local int)
}

// Validate checks config parameters for safety.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("capacity must be positive, got %v", c.Capacity)
	case c.Epsilon < 0:
		return fmt.Errorf("epsilon must not be negative, got %v", c.Epsilon)
	case c.SnapLookback < 0:
		return errors.New("snap lookback must not be negative")
	case c.NearlyEmpty < 0:
		return errors.New("nearly-empty threshold must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.SnapLookback == 0 {
		c.SnapLookback = DefaultSnapLookback
	}
	if c.Logger == nil {
		c.Logger = log.Default().WithPrefix("paginate")
	}
	return c
}

// limit is the height above which a page gets split.
func (c Config) limit() float64 {
	return c.Capacity + c.Epsilon
}
