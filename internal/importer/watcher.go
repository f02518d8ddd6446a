package importer

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of write events a file copy produces
// into a single import.
const debounceWindow = 500 * time.Millisecond

// DropEvent reports a manifest file that appeared in the drop directory
// and has settled.
type DropEvent struct {
	Path string
}

// Watcher monitors a drop directory for manifest files. A file is
// reported once its write events have been quiet for the debounce window,
// so partially-copied files are not imported.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan DropEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	pending map[string]*time.Timer
	dir     string
}

// NewWatcher creates a watcher. Start must be called before it emits.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher: fw,
		events:  make(chan DropEvent, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching dir for manifest files.
func (w *Watcher) Start(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.dir = dir
	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for path, t := range w.pending {
		// A timer whose callback is already in flight is balanced by
		// the callback's own Done.
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of settled manifest files. Closed on Stop.
func (w *Watcher) Events() <-chan DropEvent {
	return w.events
}

// Errors returns the channel of watch errors. Closed on Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !manifestFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.touch(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// touch resets the settle timer for path. When the timer fires the file
// has been quiet for a full window and is reported.
func (w *Watcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.pending[path]; ok {
		// Stop-then-Reset keeps exactly one callback run per timer.
		// When Stop loses the race the in-flight callback reports the
		// file once it gets the lock.
		if t.Stop() {
			t.Reset(debounceWindow)
		}
		return
	}
	// The callback joins the WaitGroup so Stop cannot close the events
	// channel while a settle timer is mid-send.
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(debounceWindow, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		running := w.running
		w.mu.Unlock()
		if !running {
			return
		}
		select {
		case w.events <- DropEvent{Path: path}:
		case <-w.done:
		}
	})
}

func manifestFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
