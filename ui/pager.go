package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/quire/measure"
	"github.com/charmbracelet/quire/text"
	"github.com/charmbracelet/quire/utils"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
)

const (
	statusBarHeight = 1
	ellipsis        = "…"
)

// computeLayoutWidth returns the width pages are measured and rendered at.
func (m model) computeLayoutWidth() int {
	w := m.width
	if lim := int(m.cfg.GlamourMaxWidth); lim > 0 && w > lim {
		w = lim
	}
	return max(w, 1)
}

// attachOracle measures pages at the current layout width. Registering the
// oracle repaginates the whole document.
func (m *model) attachOracle() {
	style := m.cfg.GlamourStyle
	if style == "" {
		style = styles.AutoStyle
	}

	o, err := measure.New(m.cfg.Oracle, m.layoutWidth, utils.GlamourStyle(style, m.s.doc.readOnly))
	if err != nil {
		log.Error("Could not create oracle", "oracle", m.cfg.Oracle, "err", err)
	} else {
		m.s.engine.RegisterOracle(o)
	}

	m.renderer = nil
	if !m.cfg.GlamourEnabled {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		utils.GlamourStyle(style, m.s.doc.readOnly),
		glamour.WithWordWrap(m.layoutWidth),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		log.Error("Could not create renderer", "err", err)
		return
	}
	m.renderer = r
}

func (m *model) setSize() {
	m.viewport.Width = m.width
	m.viewport.Height = m.height - statusBarHeight - m.helpHeight()
	if m.state == stateSearch {
		m.viewport.Height -= m.searchHeight()
	}
	m.viewport.Height = max(m.viewport.Height, 0)
	m.search.Width = max(m.width-ansi.PrintableRuneWidth(m.search.Prompt)-1, 1)
}

func (m model) helpHeight() int {
	return lipgloss.Height(m.help.View(m.keys))
}

func (m model) searchHeight() int {
	return 1 + max(len(m.matches), 1)
}

// renderPage shows the current page in the viewport.
func (m *model) renderPage() {
	if len(m.pages) == 0 {
		m.viewport.SetContent("")
		return
	}
	md := text.Markdown(m.pages[m.page].Content)
	out := md
	if m.renderer != nil {
		s, err := m.renderer.Render(md)
		if err != nil {
			log.Warn("Could not render page", "page", m.page, "err", err)
		} else {
			out = s
		}
	}
	m.viewport.SetContent(out)
	m.viewport.GotoTop()
}

// VIEW

func (m model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	if m.state == stateSearch {
		m.searchView(&b)
	}
	m.statusBarView(&b)
	fmt.Fprint(&b, "\n"+m.help.View(m.keys))
	return b.String()
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoStyle.Render("Quire")

	pageInfo := fmt.Sprintf("%d/%d", m.page+1, len(m.pages))
	if len(m.pages) > 0 && m.pages[m.page].Degenerate {
		pageInfo += " oversized"
	}
	pageInfo = statusBarPageStyle.Render(pageInfo)

	var warning string
	if m.s.engine.Degraded() {
		warning = statusBarWarningStyle.Render("unpaginated")
	}

	var note string
	if showStatusMessage {
		note = m.statusMessage
	} else {
		note = fmt.Sprintf("%s · %s · %s",
			filepath.Base(m.s.doc.path),
			humanize.Bytes(uint64(len(text.Markdown(m.s.latest)))),
			relativeTime(m.s.doc.modTime),
		)
	}
	note = runewidth.Truncate(" "+note+" ", max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(warning)-
			ansi.PrintableRuneWidth(pageInfo),
	), ellipsis)

	padding := strings.Repeat(" ", max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(warning)-
			ansi.PrintableRuneWidth(pageInfo),
	))

	switch {
	case showStatusMessage && m.statusWarning:
		note = statusBarWarningStyle.UnsetPadding().Render(note + padding)
	case showStatusMessage:
		note = statusBarMessageStyle.Render(note + padding)
	default:
		note = statusBarStyle.Render(note + padding)
	}

	fmt.Fprint(b, logo, note, warning, pageInfo)
}

func (m model) searchView(b *strings.Builder) {
	fmt.Fprintln(b, m.search.View())
	if len(m.matches) == 0 {
		fmt.Fprintln(b, dimNormalFg("  No matching pages"))
		return
	}
	for _, match := range m.matches {
		prefix := fmt.Sprintf("  %3d ", match.Index+1)
		s := snippet(match, m.width-runewidth.StringWidth(prefix))
		fmt.Fprintln(b, fuchsiaFg(prefix)+grayFg(s))
	}
}
