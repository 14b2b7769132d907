package ui

import (
	"fmt"
	"math"
	"os"
	"time"
	"unicode"

	"github.com/charmbracelet/quire/text"
	"github.com/charmbracelet/quire/utils"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// document is the file being edited.
type document struct {
	path string

	// Front matter is not paginated; it is kept aside and written back
	// unchanged on save.
	front []byte

	// Code files are shown as a single code block and never written.
	readOnly bool

	modTime time.Time
}

// loadDocument reads the file at path.
func loadDocument(path string) (*document, text.Content, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading document: %w", err)
	}
	d := &document{
		path:     path,
		front:    b[:len(b)-len(utils.RemoveFrontmatter(b))],
		readOnly: !utils.IsMarkdownFile(path),
	}
	if st, err := os.Stat(path); err == nil {
		d.modTime = st.ModTime()
	}
	return d, utils.ParseDocument(path, b), nil
}

// save writes c back to disk as markdown.
func (d *document) save(c text.Content) error {
	if d.readOnly {
		return fmt.Errorf("%s is read-only", d.path)
	}
	b := append(append([]byte{}, d.front...), text.Markdown(c)...)
	if err := os.WriteFile(d.path, b, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("saving document: %w", err)
	}
	d.modTime = time.Now()
	return nil
}

// Normalize text to aid in the filtering process. In particular, we remove
// diacritics, "ö" becomes "o". Note that Mn is the unicode key for nonspacing
// marks.
func normalize(in string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, in)
	return out, err
}

// Return the time in a human-readable format relative to the current time.
func relativeTime(then time.Time) string {
	now := time.Now()
	ago := now.Sub(then)
	if ago < time.Minute {
		return "just now"
	} else if ago < humanize.Week {
		return humanize.CustomRelTime(then, now, "ago", "from now", magnitudes)
	}
	return then.Format("02 Jan 2006 15:04 MST")
}

// Magnitudes for relative time.
var magnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "now", DivBy: time.Second},
	{D: 2 * time.Second, Format: "1 second %s", DivBy: 1},
	{D: time.Minute, Format: "%d seconds %s", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: humanize.Day, Format: "%d hours %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day %s", DivBy: 1},
	{D: humanize.Week, Format: "%d days %s", DivBy: humanize.Day},
	{D: math.MaxInt64, Format: "a long while %s", DivBy: 1},
}
