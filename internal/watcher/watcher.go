// Package watcher reports batches of file changes under a directory tree.
// Raw fsnotify events are filtered, debounced and delivered to handlers as
// one batch per quiet period.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/yamlinc/internal/logging"
)

// FileWatcher watches for file changes with debouncing
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	skipDirs  []string
	logger    logging.Logger
	mutex     sync.RWMutex
	stopOnce  sync.Once
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventAdded EventType = iota
	EventChanged
	EventRemoved
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventAdded:
		return "add"
	case EventChanged:
		return "change"
	case EventRemoved:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of change events
type ChangeHandler func(events []ChangeEvent) error

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", "node_modules", "vendor"}

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: newDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		skipDirs:  slices.Clone(DefaultSkipDirs),
		logger:    logger.WithComponent("watcher"),
	}

	return fw, nil
}

func newDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// AddFilter adds a file filter. An event is delivered only when every
// filter accepts its path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// SkipDirs adds directory names that AddRecursive does not descend into.
func (fw *FileWatcher) SkipDirs(names ...string) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	for _, name := range names {
		name = filepath.Base(filepath.Clean(name))
		if name != "." && !slices.Contains(fw.skipDirs, name) {
			fw.skipDirs = append(fw.skipDirs, name)
		}
	}
}

// AddPath adds a single path to watch
func (fw *FileWatcher) AddPath(path string) error {
	return fw.watcher.Add(filepath.Clean(path))
}

// AddRecursive adds a directory and all subdirectories to watch, skipping
// the configured directory names.
func (fw *FileWatcher) AddRecursive(root string) error {
	root = filepath.Clean(root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && errors.Is(err, fs.ErrPermission) {
				fw.logger.Warn(context.Background(), err, "skipping unreadable directory", "path", path)
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && fw.skipped(d.Name()) {
			return fs.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

func (fw *FileWatcher) skipped(name string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	return slices.Contains(fw.skipDirs, name)
}

// WatchedPaths returns the directories currently watched.
func (fw *FileWatcher) WatchedPaths() []string {
	paths := fw.watcher.WatchList()
	slices.Sort(paths)
	return paths
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	// Start debouncer
	go fw.debouncer.start(ctx)

	// Start event processor
	go fw.processEvents(ctx)

	// Start main watcher loop
	go fw.watchLoop(ctx)

	return nil
}

// Stop stops the file watcher and cleans up resources. It is safe to call
// more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.debouncer.stop()
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	// Attribute changes carry no content change
	if event.Op == fsnotify.Chmod {
		return
	}

	info, statErr := os.Stat(event.Name)

	// Directories created after start are watched as well
	if event.Has(fsnotify.Create) && statErr == nil && info.IsDir() {
		if !fw.skipped(info.Name()) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(context.Background(), err, "failed to watch new directory", "path", event.Name)
			}
		}
		return
	}

	// Apply filters
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	changeEvent := ChangeEvent{
		Type: eventType(event.Op),
		Path: event.Name,
	}
	if statErr == nil {
		changeEvent.ModTime = info.ModTime()
		changeEvent.Size = info.Size()
	}

	fw.debouncer.submit(changeEvent)
}

// eventType maps an fsnotify operation onto a change kind. A rename is
// reported as a removal of the old name; the new name arrives as a create.
func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventAdded
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventRemoved
	default:
		return EventChanged
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					// Log error but continue processing
					fw.logger.Warn(ctx, err, "file watcher handler error")
				}
			}
		}
	}
}

// Debouncer implementation
func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) submit(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
		// Channel full, skip this event
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Add event to pending list
	d.pending = append(d.pending, event)

	// Reset timer
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.flush()
	})
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	events := coalesce(d.pending)

	// Send debounced events
	select {
	case d.output <- events:
	default:
		// Channel full, skip
	}

	// Clear pending events
	d.pending = d.pending[:0]
}

// coalesce keeps one event per path, in first-seen order, carrying the
// latest event for that path.
func coalesce(pending []ChangeEvent) []ChangeEvent {
	index := make(map[string]int, len(pending))
	events := make([]ChangeEvent, 0, len(pending))
	for _, event := range pending {
		if i, ok := index[event.Path]; ok {
			events[i] = event
			continue
		}
		index[event.Path] = len(events)
		events = append(events, event)
	}
	return events
}

// ExtensionFilter accepts paths whose extension, compared without the dot
// and case-insensitively, is one of exts.
func ExtensionFilter(exts ...string) FileFilter {
	allowed := make([]string, 0, len(exts))
	for _, ext := range exts {
		allowed = append(allowed, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return func(path string) bool {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		return ext != "" && slices.Contains(allowed, ext)
	}
}

// NoDirFilter rejects paths that pass through a directory named dir.
func NoDirFilter(dir string) FileFilter {
	return func(path string) bool {
		for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
			if part == dir {
				return false
			}
		}
		return true
	}
}

// Common file filters
var (
	NoGitFilter         = NoDirFilter(".git")
	NoVendorFilter      = NoDirFilter("vendor")
	NoNodeModulesFilter = NoDirFilter("node_modules")
)
