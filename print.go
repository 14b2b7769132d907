package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/quire/paginate"
	"github.com/charmbracelet/quire/text"
	"github.com/charmbracelet/quire/utils"
	"github.com/dustin/go-humanize"
)

// printer writes a paginated document to the terminal.
type printer struct {
	width  int
	render bool
	style  string
	isCode bool
}

func (p printer) printPages(w io.Writer, pages []paginate.PageView) error {
	var r *glamour.TermRenderer
	if p.render {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithColorProfile(lipgloss.ColorProfile()),
			utils.GlamourStyle(p.style, p.isCode),
			glamour.WithWordWrap(p.width),
			glamour.WithPreservedNewLines(),
		)
		if err != nil {
			return err
		}
	}

	for i, pg := range pages {
		fmt.Fprintln(w, p.pageRule(i, len(pages), pg.Degenerate)) //nolint: errcheck

		s := text.Markdown(pg.Content)
		if r != nil {
			out, err := r.Render(s)
			if err != nil {
				return err
			}
			s = trimLines(out)
		}
		fmt.Fprint(w, s) //nolint: errcheck
		if !strings.HasSuffix(s, "\n") {
			fmt.Fprintln(w) //nolint: errcheck
		}
	}
	return nil
}

// pageRule is the separator printed above each page.
func (p printer) pageRule(i, n int, oversized bool) string {
	label := fmt.Sprintf(" page %d/%d ", i+1, n)
	if oversized {
		label += "(oversized) "
	}
	fill := max(0, p.width-lipgloss.Width(label)-2)
	return rule("──") + keyword(label) + rule(strings.Repeat("─", fill))
}

func (p printer) printStats(w io.Writer, e *paginate.Engine, calls int64) {
	st := e.Stats()
	doc := e.Document()
	line := fmt.Sprintf("%s pages · %s measurements · %s · %s characters",
		humanize.Comma(int64(st.Pages)),
		humanize.Comma(calls),
		humanize.Bytes(uint64(len(doc.String()))),
		humanize.Comma(int64(doc.Len())),
	)
	if e.Degraded() {
		line += " · unpaginated (layout unavailable)"
	}
	fmt.Fprintln(w, rule(line)) //nolint: errcheck
}

// trimLines strips the padding glamour adds to the right of each line.
func trimLines(out string) string {
	lines := strings.Split(out, "\n")
	var content strings.Builder
	for i, s := range lines {
		content.WriteString(strings.TrimRight(s, " "))

		// don't add an artificial newline after the last split
		if i+1 < len(lines) {
			content.WriteByte('\n')
		}
	}
	return content.String()
}
