package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Document to edit
	Path string

	// Pagination
	Capacity     float64
	Epsilon      float64
	SnapLookback int
	NearlyEmpty  int
	Oracle       string

	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Reload the document when it changes on disk. Writes that arrive within
	// ReloadDebounce of each other are handled once.
	Watch          bool          `env:"QUIRE_WATCH"           envDefault:"true"`
	ReloadDebounce time.Duration `env:"QUIRE_RELOAD_DEBOUNCE" envDefault:"150ms"`

	// For debugging the UI
	GlamourEnabled bool `env:"QUIRE_ENABLE_GLAMOUR" envDefault:"true"`
}
