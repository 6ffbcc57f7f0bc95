package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports edits to the configuration file. The running monitor
// keeps its snapshot; the notice tells the user a restart is needed.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	changes chan string
	logger  *zap.Logger
	done    chan struct{}
}

// NewWatcher starts watching the configuration file at path. The parent
// directory is watched so editors that replace the file are noticed too.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		watcher: watcher,
		path:    abs,
		changes: make(chan string, 1),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.processEvents()
	return w, nil
}

// Changes delivers the config path after it was modified. Notices that
// are not read are coalesced.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Close stops watching
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) processEvents() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Warn("Configuration file changed, restart to apply",
				zap.String("path", w.path),
				zap.String("op", event.Op.String()),
			)
			select {
			case w.changes <- w.path:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}
