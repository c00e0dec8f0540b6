// Package library maintains the set of game images found under the
// configured root directories.
//
// The library is the discovery side of the system: it scans roots for
// recognized image files, keeps the listing current as files appear and
// disappear, and pre-warms the metadata cache so the first listing a
// client sees already has titles and icons in flight.
package library

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gameshelf/gameshelf/internal/logger"
	"github.com/gameshelf/gameshelf/pkg/gameinfo"
)

// recognizedExtensions lists the file extensions treated as game images.
var recognizedExtensions = map[string]bool{
	".pbp": true,
	".iso": true,
	".cso": true,
	".elf": true,
	".prx": true,
}

// Recognized reports whether path names a file the library indexes.
func Recognized(path string) bool {
	return recognizedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Game is one entry in the library listing.
type Game struct {
	Path string        `json:"path"`
	Kind gameinfo.Kind `json:"kind"`
}

// Library indexes game images under a set of root directories.
//
// Thread Safety: All methods are safe for concurrent use.
type Library struct {
	mu    sync.RWMutex
	games map[string]Game

	roots []string
	cache *gameinfo.Cache
}

// New creates a library over the given roots. The cache may be nil, in
// which case discovered entries are indexed but not pre-warmed.
func New(roots []string, cache *gameinfo.Cache) *Library {
	return &Library{
		games: make(map[string]Game),
		roots: roots,
		cache: cache,
	}
}

// Roots returns the configured root directories.
func (l *Library) Roots() []string {
	return l.roots
}

// Scan walks every root in parallel and indexes all recognized images.
// Unreadable directories are logged and skipped; the scan only fails if
// a root itself cannot be walked.
func (l *Library) Scan(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, root := range l.roots {
		root := root
		g.Go(func() error {
			count := 0
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					if path == root {
						return err
					}
					logger.Warn("Skipping unreadable path during scan",
						"path", path,
						"error", err,
					)
					return nil
				}

				if err := ctx.Err(); err != nil {
					return err
				}

				if !d.IsDir() && Recognized(path) {
					l.Add(path)
					count++
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("scanning %s: %w", root, err)
			}

			logger.Info("Library root scanned",
				"root", root,
				"games", count,
			)
			return nil
		})
	}

	return g.Wait()
}

// Add indexes a single image path and pre-warms its cache record.
// Adding a path that is already indexed is a no-op.
func (l *Library) Add(path string) {
	l.mu.Lock()
	_, exists := l.games[path]
	if !exists {
		l.games[path] = Game{Path: path, Kind: gameinfo.DetectKind(path)}
	}
	l.mu.Unlock()

	if exists {
		return
	}

	logger.Debug("Game indexed", "path", path)
	if l.cache != nil {
		l.cache.GetInfo(path, false)
	}
}

// Remove drops a path from the listing. The cached record, if any, stays
// resident until the next cache clear.
func (l *Library) Remove(path string) {
	l.mu.Lock()
	_, existed := l.games[path]
	delete(l.games, path)
	l.mu.Unlock()

	if existed {
		logger.Debug("Game removed from index", "path", path)
	}
}

// Contains reports whether path is currently indexed.
func (l *Library) Contains(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.games[path]
	return ok
}

// Games returns the current listing sorted by path.
func (l *Library) Games() []Game {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Game, 0, len(l.games))
	for _, g := range l.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of indexed games.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.games)
}
