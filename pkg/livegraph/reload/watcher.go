package reload

import (
	"os"
	"time"
)

// Watcher polls one source file's modification time. It is deliberately
// a poller, not an inotify consumer: editors save through renames,
// tempfiles, and remote filesystems, and a modtime comparison at a
// human interval catches all of them with no platform surface.
//
// The first successful check after startup counts as a change, so a
// fresh host compiles what it finds rather than waiting for an edit.
type Watcher struct {
	path string
	mod  time.Time
	seen bool
}

// NewWatcher watches the given source path.
func NewWatcher(path string) *Watcher {
	return &Watcher{path: path}
}

// Path returns the watched source path.
func (w *Watcher) Path() string { return w.path }

// Check reports whether the source changed since the last check. A
// missing file is not a change and not an error; the watcher keeps
// waiting for it to appear. Any modtime difference triggers, not just a
// newer one, since editors and checkouts can move timestamps backwards.
func (w *Watcher) Check() (bool, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	mod := fi.ModTime()
	if !w.seen {
		w.seen = true
		w.mod = mod
		return true, nil
	}
	if !mod.Equal(w.mod) {
		w.mod = mod
		return true, nil
	}
	return false, nil
}

// Invalidate forces the next Check to report a change, forcing a
// rebuild without touching the source.
func (w *Watcher) Invalidate() {
	w.seen = false
}
