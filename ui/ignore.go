package ui

import (
	"os"
	"path/filepath"
	"strings"
)

// Returns whether or not the given path contains a file or directory starting
// with a dot. This is relative to dir, so if the document itself lives in a
// dot directory this function won't return true every time.
func isDotFileOrDir(dir, path string) bool {
	p := strings.TrimPrefix(path, dir)
	for _, v := range strings.Split(p, string(os.PathSeparator)) {
		if len(v) > 0 && v[0] == '.' {
			return true
		}
	}
	return false
}

// ignoreEvent reports whether a file event in the document's directory is
// unrelated to the document: editor swap and backup files, or other files
// altogether.
func ignoreEvent(docPath, eventPath string) bool {
	dir := filepath.Dir(docPath)
	if isDotFileOrDir(dir, eventPath) || strings.HasSuffix(eventPath, "~") {
		return true
	}
	return filepath.Clean(eventPath) != filepath.Clean(docPath)
}
