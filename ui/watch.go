package ui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

type fileChangedMsg struct{}

type watchErrMsg struct{ err error }

func (e watchErrMsg) Error() string { return e.err.Error() }

// watcher reports writes to the document. The directory is watched rather
// than the file, since many editors save by renaming a new file over the
// old one.
type watcher struct {
	path string
	fsw  *fsnotify.Watcher
}

func newWatcher(path string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &watcher{path: path, fsw: fsw}, nil
}

// next waits for the next relevant event.
func (w *watcher) next() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return nil
				}
				if ignoreEvent(w.path, ev.Name) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					log.Debug("document changed on disk", "op", ev.Op.String())
					return fileChangedMsg{}
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err}
			}
		}
	}
}

func (w *watcher) Close() error {
	return w.fsw.Close()
}
