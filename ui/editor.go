package ui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/quire/text"
	"github.com/charmbracelet/x/editor"
)

type editorFinishedMsg struct {
	page int
	path string
	err  error
}

// editPage writes page's markdown to a temporary file and opens it in
// EDITOR. The file is read back when the editor exits.
func editPage(page int, c text.Content) tea.Cmd {
	f, err := os.CreateTemp("", "quire-page-*.md")
	if err != nil {
		return errCmd(fmt.Errorf("creating page file: %w", err))
	}
	path := f.Name()
	_, err = f.WriteString(text.Markdown(c))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return errCmd(fmt.Errorf("writing page file: %w", err))
	}

	cmd, err := editor.Cmd("quire", path)
	if err != nil {
		_ = os.Remove(path)
		return errCmd(err)
	}
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorFinishedMsg{page: page, path: path, err: err}
	})
}

// readEditedPage reads back and removes the file written by editPage. Most
// editors end files with a newline; it is dropped again unless the page
// already ended with one. Unchanged spans keep the markup they had.
func readEditedPage(path string, orig text.Content) (text.Content, error) {
	defer os.Remove(path) //nolint:errcheck
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading edited page: %w", err)
	}
	s := string(b)
	if !strings.HasSuffix(text.Markdown(orig), "\n") {
		s = strings.TrimSuffix(s, "\n")
	}
	return text.KeepMarkup(orig, text.Parse(s)), nil
}
