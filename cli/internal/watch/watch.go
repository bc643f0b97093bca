// Package watch re-runs a callback when a descriptor file changes.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Events are coalesced so one save triggers one run.
const debounceDelay = 500 * time.Millisecond

// Watcher watches a single file.
type Watcher struct {
	file     string
	onChange func() error
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher watches file and calls onChange after each (debounced) change.
// The first run is the caller's business; Start only reacts to changes.
func NewWatcher(file string, onChange func() error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	absPath, err := filepath.Abs(file)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Watch the directory: editors that save atomically replace the file,
	// so watching the file itself loses track after the first save.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return &Watcher{
		file:     absPath,
		onChange: onChange,
		watcher:  watcher,
		done:     make(chan struct{}),
	}, nil
}

// Start begins reacting to changes in the background.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop ends the watch.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(debounceDelay)
	debounce.Stop()
	var pending <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			eventPath, err := filepath.Abs(event.Name)
			if err == nil && eventPath == w.file {
				debounce.Reset(debounceDelay)
				pending = debounce.C
			}

		case <-pending:
			if err := w.onChange(); err != nil {
				fmt.Fprintf(os.Stderr, "watch callback error: %v\n", err)
			}
			pending = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

		case <-w.done:
			return
		}
	}
}
