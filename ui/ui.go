package ui

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/quire/paginate"
	"github.com/charmbracelet/quire/text"
	"github.com/sahilm/fuzzy"
)

const statusMessageTimeout = 3 * time.Second

// NewProgram returns a new Tea program editing the document at cfg.Path.
func NewProgram(cfg Config) (*tea.Program, error) {
	m, err := newModel(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Watch {
		w, err := newWatcher(cfg.Path)
		if err != nil {
			log.Warn("Not watching document for changes", "err", err)
		} else {
			m.s.watcher = w
		}
	}

	log.Debug("Starting quire TUI",
		"path", cfg.Path,
		"capacity", cfg.Capacity,
		"oracle", cfg.Oracle,
		"watch", m.s.watcher != nil,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(m, opts...), nil
}

// MESSAGES

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func errCmd(err error) tea.Cmd {
	return func() tea.Msg { return errMsg{err} }
}

type reloadMsg struct{ gen int }

type statusMessageTimeoutMsg struct{ gen int }

// MODEL

type state int

const (
	stateBrowse state = iota
	stateSearch
)

// String translates the state to a human-readable string. This is just for
// debugging.
func (s state) String() string {
	return [...]string{
		"browsing",
		"searching",
	}[s]
}

// session is shared by every copy of the model. The engine's callbacks
// write to it.
type session struct {
	engine  *paginate.Engine
	doc     *document
	watcher *watcher

	// page holding the caret after the last pass
	caret int

	// document as of the last pass, and as last written to disk
	latest text.Content
	saved  text.Content
}

type model struct {
	cfg  Config
	s    *session
	keys keyMap

	state    state
	viewport viewport.Model
	search   textinput.Model
	help     help.Model
	matches  fuzzy.Matches

	pages       []paginate.PageView
	page        int
	width       int
	height      int
	layoutWidth int
	renderer    *glamour.TermRenderer

	statusMessage string
	statusWarning bool
	statusGen     int
	reloadGen     int
}

func newModel(cfg Config) (model, error) {
	if cfg.Path == "" {
		return model{}, errors.New("no document to edit")
	}
	if cfg.ReloadDebounce <= 0 {
		cfg.ReloadDebounce = 150 * time.Millisecond
	}

	doc, content, err := loadDocument(cfg.Path)
	if err != nil {
		return model{}, err
	}

	s := &session{doc: doc}
	s.engine, err = paginate.NewEngine(paginate.Config{
		Capacity:     cfg.Capacity,
		Epsilon:      cfg.Epsilon,
		SnapLookback: cfg.SnapLookback,
		NearlyEmpty:  cfg.NearlyEmpty,
		Logger:       log.Default().WithPrefix("paginate"),
		OnDocumentChanged: func(doc text.Content) {
			s.latest = doc
		},
		OnCursorRelocated: func(page, _ int) {
			s.caret = page
		},
	})
	if err != nil {
		return model{}, err
	}

	// There is no oracle until the terminal size is known, so the document
	// starts out on a single page.
	s.engine.SetDocumentContent(content)
	s.saved = s.latest

	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.Placeholder = "words on the page"
	ti.CharLimit = 256

	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = cfg.EnableMouse

	m := model{
		cfg:      cfg,
		s:        s,
		keys:     newKeyMap(),
		state:    stateBrowse,
		viewport: vp,
		search:   ti,
		help:     help.New(),
	}
	m.refresh()
	return m, nil
}

// INIT

func (m model) Init() tea.Cmd {
	if m.s.watcher != nil {
		return m.s.watcher.next()
	}
	return nil
}

// UPDATE

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if lw := m.computeLayoutWidth(); lw != m.layoutWidth {
			m.layoutWidth = lw
			m.attachOracle()
		}
		m.setSize()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.state == stateSearch {
			return m.updateSearch(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.s.watcher != nil {
				_ = m.s.watcher.Close()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Next):
			m.gotoPage(m.page + 1)
			return m, nil

		case key.Matches(msg, m.keys.Prev):
			m.gotoPage(m.page - 1)
			return m, nil

		case key.Matches(msg, m.keys.First):
			m.gotoPage(0)
			return m, nil

		case key.Matches(msg, m.keys.Last):
			m.gotoPage(len(m.pages) - 1)
			return m, nil

		case key.Matches(msg, m.keys.Search):
			m.state = stateSearch
			m.search.Reset()
			m.matches = nil
			m.setSize()
			cmd := m.search.Focus()
			return m, cmd

		case key.Matches(msg, m.keys.Edit):
			if m.s.doc.readOnly {
				cmd := m.showStatusMessage("This file is read-only", true)
				return m, cmd
			}
			return m, editPage(m.page, m.pages[m.page].Content)

		case key.Matches(msg, m.keys.Copy):
			if err := clipboard.WriteAll(text.Markdown(m.pages[m.page].Content)); err != nil {
				cmd := m.showStatusMessage("Could not copy: "+err.Error(), true)
				return m, cmd
			}
			cmd := m.showStatusMessage(fmt.Sprintf("Copied page %d", m.page+1), false)
			return m, cmd

		case key.Matches(msg, m.keys.Reflow):
			m.s.engine.Reflow()
			m.refresh()
			cmd := m.showStatusMessage("Reflowed", false)
			return m, cmd

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.setSize()
			return m, nil
		}

	case editorFinishedMsg:
		if msg.err != nil {
			_ = os.Remove(msg.path)
			cmd := m.showStatusMessage("Editor failed: "+msg.err.Error(), true)
			return m, cmd
		}
		if msg.page >= len(m.pages) {
			_ = os.Remove(msg.path)
			cmd := m.showStatusMessage("That page no longer exists", true)
			return m, cmd
		}
		c, err := readEditedPage(msg.path, m.pages[msg.page].Content)
		if err != nil {
			cmd := m.showStatusMessage(err.Error(), true)
			return m, cmd
		}
		cmd := m.applyEdit(msg.page, c)
		return m, cmd

	case fileChangedMsg:
		m.reloadGen++
		gen := m.reloadGen
		return m, tea.Batch(
			m.s.watcher.next(),
			tea.Tick(m.cfg.ReloadDebounce, func(time.Time) tea.Msg {
				return reloadMsg{gen}
			}),
		)

	case reloadMsg:
		if msg.gen != m.reloadGen {
			// a newer change is pending
			return m, nil
		}
		cmd := m.reload()
		return m, cmd

	case watchErrMsg:
		log.Warn("Watching document failed", "err", msg.err)
		return m, m.s.watcher.next()

	case statusMessageTimeoutMsg:
		if msg.gen == m.statusGen {
			m.statusMessage = ""
			m.statusWarning = false
		}
		return m, nil

	case errMsg:
		log.Error("TUI error", "err", msg.err)
		cmd := m.showStatusMessage(msg.Error(), true)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.endSearch()
		return m, nil

	case "enter":
		if len(m.matches) > 0 {
			m.gotoPage(m.matches[0].Index)
		}
		m.endSearch()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.matches = findPages(m.pages, m.search.Value())
	if len(m.matches) > maxSearchResults {
		m.matches = m.matches[:maxSearchResults]
	}
	m.setSize()
	return m, cmd
}

func (m *model) endSearch() {
	m.state = stateBrowse
	m.search.Blur()
	m.matches = nil
	m.setSize()
}

// gotoPage shows page i and moves the caret to its start.
func (m *model) gotoPage(i int) {
	i = max(0, min(i, len(m.pages)-1))
	m.s.engine.SetCursor(i, 0)
	m.s.caret = i
	m.refresh()
}

// applyEdit hands an edited page to the engine and saves the result.
func (m *model) applyEdit(page int, c text.Content) tea.Cmd {
	m.s.engine.SetCursor(page, 0)
	if err := m.s.engine.ApplyLocalEdit(page, c); err != nil {
		return m.showStatusMessage(err.Error(), true)
	}
	m.refresh()

	if text.Equal(m.s.latest, m.s.saved) {
		return nil
	}
	if err := m.s.doc.save(m.s.latest); err != nil {
		return m.showStatusMessage(err.Error(), true)
	}
	m.s.saved = m.s.latest
	return m.showStatusMessage(fmt.Sprintf("Saved · %d pages", len(m.pages)), false)
}

// reload re-reads the document from disk, unless it only echoes what we
// wrote ourselves.
func (m *model) reload() tea.Cmd {
	doc, content, err := loadDocument(m.cfg.Path)
	if err != nil {
		return m.showStatusMessage(err.Error(), true)
	}
	m.s.doc = doc
	if text.Markdown(content) == text.Markdown(m.s.engine.Document()) {
		return nil
	}

	m.s.engine.SetDocumentContent(content)
	m.s.saved = m.s.latest
	m.refresh()
	return m.showStatusMessage("Reloaded from disk", false)
}

// refresh picks up the engine's current partition.
func (m *model) refresh() {
	m.pages = m.s.engine.Pages()
	m.page = max(0, min(m.s.caret, len(m.pages)-1))
	m.renderPage()
}

func (m *model) showStatusMessage(msg string, warning bool) tea.Cmd {
	m.statusMessage = msg
	m.statusWarning = warning
	m.statusGen++
	gen := m.statusGen
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{gen}
	})
}
