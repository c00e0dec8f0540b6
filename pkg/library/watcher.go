package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gameshelf/gameshelf/internal/logger"
)

// Watcher keeps a Library current by reacting to filesystem events under
// its roots.
//
// fsnotify watches are not recursive, so the watcher registers every
// directory under the roots and adds new directories as they appear.
// Events for newly created directories race with files written into them
// before the watch lands; a created directory is therefore re-scanned
// after its watch is registered.
type Watcher struct {
	lib    *Library
	fw     *fsnotify.Watcher
	done   chan struct{}
	closed chan struct{}
}

// NewWatcher creates a watcher over the library's roots (not yet started).
func NewWatcher(lib *Library) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	return &Watcher{
		lib:    lib,
		fw:     fw,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}, nil
}

// Start registers watches on every directory under the roots and begins
// processing events.
func (w *Watcher) Start() error {
	for _, root := range w.lib.Roots() {
		if err := w.watchTree(root); err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}

	go w.loop()

	logger.Info("Library watcher started", "roots", len(w.lib.Roots()))
	return nil
}

// Close stops event processing and releases all watches.
//
// This is safe to call multiple times.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}

	err := w.fw.Close()
	<-w.closed
	return err
}

// watchTree registers a watch on dir and every directory below it, and
// indexes any recognized files found along the way.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			logger.Warn("Skipping unreadable path while watching",
				"path", path,
				"error", err,
			)
			return nil
		}

		if d.IsDir() {
			return w.fw.Add(path)
		}
		if Recognized(path) {
			w.lib.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.closed)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Error("Filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				logger.Warn("Failed to watch new directory",
					"path", event.Name,
					"error", err,
				)
			}
			return
		}
		if Recognized(event.Name) {
			w.lib.Add(event.Name)
		}

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.lib.Remove(event.Name)
	}
}
