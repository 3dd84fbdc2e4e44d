// Package filesystem discovers books in a library directory and watches it
// for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/logger"
)

// Ensure Discoverer implements the interface.
var _ driven.BookDiscoverer = (*Discoverer)(nil)

// DefaultDebounce is how long a path must stay quiet before its change is
// delivered. Editors and copy tools write files in several bursts.
const DefaultDebounce = 500 * time.Millisecond

// ChangeType describes what happened to a book file.
type ChangeType int

const (
	// ChangeUpserted means the file was created or written.
	ChangeUpserted ChangeType = iota
	// ChangeRemoved means the file was deleted or renamed away.
	ChangeRemoved
)

// String returns the change type name.
func (c ChangeType) String() string {
	if c == ChangeRemoved {
		return "removed"
	}
	return "upserted"
}

// Change is a debounced change to one book file.
type Change struct {
	Type ChangeType
	Book domain.Book
}

// SupportsFunc reports whether a path has an extractable format.
type SupportsFunc func(path string) bool

// Library is a directory of book files.
type Library struct {
	root      string
	recursive bool
	supports  SupportsFunc
	debounce  time.Duration

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// Option configures a Library.
type Option func(*Library)

// WithRecursive also scans and watches subdirectories.
func WithRecursive(recursive bool) Option {
	return func(l *Library) { l.recursive = recursive }
}

// WithDebounce sets the watch debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(l *Library) { l.debounce = d }
}

// New creates a library rooted at dir. Only files accepted by supports are
// treated as books.
func New(root string, supports SupportsFunc, opts ...Option) *Library {
	l := &Library{
		root:     root,
		supports: supports,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// Validate checks that the root exists and is a directory.
func (l *Library) Validate() error {
	info, err := os.Stat(l.root)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", l.root)
	}
	return nil
}

// Discover lists the books in the library ordered by path. Hidden files
// and unsupported formats are skipped.
func (l *Library) Discover(ctx context.Context) ([]domain.Book, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	var books []domain.Book
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path == l.root {
				return nil
			}
			if !l.recursive || isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if l.accepts(path) {
			books = append(books, domain.NewBook(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", l.root, err)
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].SourcePath < books[j].SourcePath
	})
	logger.Debug("discovered %d books in %s", len(books), l.root)
	return books, nil
}

// Watch delivers debounced changes to book files until ctx is cancelled,
// then closes the channel.
func (l *Library) Watch(ctx context.Context) (<-chan Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.New("library watcher is closed")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := l.addDirs(watcher); err != nil {
		watcher.Close()
		return nil, err
	}
	l.watcher = watcher

	changes := make(chan Change)
	go l.watchLoop(ctx, watcher, changes)
	return changes, nil
}

// Close stops any running watcher.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.watcher != nil {
		err := l.watcher.Close()
		l.watcher = nil
		return err
	}
	return nil
}

func (l *Library) addDirs(watcher *fsnotify.Watcher) error {
	if !l.recursive {
		return watcher.Add(l.root)
	}
	return filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != l.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (l *Library) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, out chan<- Change) {
	defer close(out)

	pending := make(map[string]Change)
	timer := time.NewTimer(l.debounce)
	timer.Stop()
	defer timer.Stop()

	flush := func() bool {
		paths := make([]string, 0, len(pending))
		for path := range pending {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			select {
			case out <- pending[path]:
			case <-ctx.Done():
				return false
			}
			delete(pending, path)
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if l.recursive && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(filepath.Base(event.Name)) {
					if err := watcher.Add(event.Name); err != nil {
						logger.Warn("watching %s: %v", event.Name, err)
					}
				}
			}
			change := l.handleFsEvent(event)
			if change == nil {
				continue
			}
			logger.Debug("fs event %s: %s", change.Type, event.Name)
			pending[event.Name] = *change
			timer.Reset(l.debounce)

		case <-timer.C:
			if !flush() {
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error: %v", err)
		}
	}
}

// handleFsEvent maps a raw event to a book change, or nil when the event
// is irrelevant.
func (l *Library) handleFsEvent(event fsnotify.Event) *Change {
	if !l.accepts(event.Name) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Type: ChangeRemoved, Book: domain.NewBook(event.Name)}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &Change{Type: ChangeUpserted, Book: domain.NewBook(event.Name)}
	default:
		return nil
	}
}

func (l *Library) accepts(path string) bool {
	if isHidden(filepath.Base(path)) {
		return false
	}
	return l.supports == nil || l.supports(path)
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Discoverer scans arbitrary directories for books.
type Discoverer struct {
	supports SupportsFunc
}

// NewDiscoverer creates a discoverer accepting files supported by supports.
func NewDiscoverer(supports SupportsFunc) *Discoverer {
	return &Discoverer{supports: supports}
}

// Discover lists the books in dir.
func (d *Discoverer) Discover(ctx context.Context, dir string, recursive bool) ([]domain.Book, error) {
	return New(dir, d.supports, WithRecursive(recursive)).Discover(ctx)
}
