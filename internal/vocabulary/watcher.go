package vocabulary

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a set of custom data files. Bursts of events
// are collapsed into one callback after the debounce window.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
	done  chan struct{}
}

func NewWatcher(debounce time.Duration, onChange func()) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  w,
		debounce: debounce,
		onChange: onChange,
		files:    map[string]bool{},
		dirs:     map[string]bool{},
		done:     make(chan struct{}),
	}, nil
}

// Watch replaces the watched file set. Directories are watched rather than
// files so that editors which save by rename are still noticed.
func (w *Watcher) Watch(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range w.dirs {
		if !dirs[dir] {
			_ = w.watcher.Remove(dir)
		}
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			log.Warningf("cannot watch %s: %s", dir, err)
			delete(dirs, dir)
		}
	}
	w.files = files
	w.dirs = dirs
}

func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[filepath.Clean(path)]
}

// Run delivers debounced change callbacks until ctx is done or Close is
// called.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.watched(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debugf("custom data changed: %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warningf("watch error: %s", err)
		case <-fire:
			fire = nil
			w.onChange()
		}
	}
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
