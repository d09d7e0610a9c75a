// Package storage records log entries in memory and appends them to
// per-source files.
//
// The memory append and the file append are not transactional: when the
// file write fails the entry stays in memory, so the two sinks can diverge.
// Entries routed to the same file appear there in the same relative order
// as in memory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/atikulmunna/logbook/internal/config"
	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/atikulmunna/logbook/internal/metrics"
	"github.com/atikulmunna/logbook/internal/model"
	"github.com/spf13/afero"
)

// Observer is notified of every recorded entry, after both sinks were tried.
type Observer func(model.Log)

// Storage owns the ordered in-memory sequence of entries and the read-only
// configuration used to resolve level and file path per API.
// It is safe for concurrent use.
type Storage struct {
	mu      sync.RWMutex
	logs    []model.Log
	sinks   []string
	sinkSet map[string]struct{}

	cfg       config.Config
	fs        afero.Fs
	logger    *logging.Logger
	metrics   *metrics.Recorder
	clock     func() time.Time
	observers []Observer

	filesMu   sync.Mutex
	fileLocks map[string]*sync.Mutex
}

// Option configures a Storage.
type Option func(*Storage)

// WithFs sets the filesystem files are appended to. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Storage) { s.fs = fs }
}

// WithLogger sets the operator log used for load and write failures.
func WithLogger(l *logging.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

// WithMetrics sets the counters updated on every call.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Storage) { s.metrics = m }
}

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.clock = now }
}

// WithObserver registers fn to be called for each recorded entry.
func WithObserver(fn Observer) Option {
	return func(s *Storage) { s.observers = append(s.observers, fn) }
}

// New creates a Storage using cfg.
func New(cfg config.Config, opts ...Option) *Storage {
	s := &Storage{
		cfg:       cfg,
		fs:        afero.NewOsFs(),
		logger:    logging.Discard(),
		clock:     time.Now,
		sinkSet:   make(map[string]struct{}),
		fileLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the properties resource at path and creates a Storage from it.
// A missing resource is reported once as a warning and any other load error
// as an error; in both cases every API falls back to the defaults.
func Open(path string, opts ...Option) *Storage {
	s := New(config.Empty(), opts...)

	cfg, err := config.Load(s.fs, path)
	if err != nil {
		var loadErr *config.LoadError
		if errors.As(err, &loadErr) && loadErr.Missing() {
			s.logger.Warn("failed to load log configuration file, using defaults", "path", path)
		} else {
			s.logger.Error("failed to load log configuration file, using defaults", "path", path, "error", err)
		}
	}
	s.cfg = cfg
	return s
}

// Config returns the configuration the storage resolves APIs against.
func (s *Storage) Config() config.Config {
	return s.cfg
}

// Log records message for api. The entry is always kept in memory; a failed
// file append is reported to the operator log and does not undo it.
func (s *Storage) Log(api, message string) model.Log {
	level := s.cfg.Level(api)
	path := s.cfg.Filepath(api)
	entry := model.NewLogAt(level, message, path, s.clock())

	// Holding the path lock across both appends keeps file order equal to
	// memory order for that path.
	lock := s.fileLock(path)
	lock.Lock()
	s.append(entry)
	err := s.writeToFile(path, entry)
	lock.Unlock()

	s.metrics.Recorded(level)
	if err != nil {
		s.metrics.WriteFailed()
		s.logger.Error("failed to write log to file", "api", api, "path", path, "error", err)
	} else {
		s.logger.Debug("recorded entry", "api", api, "level", level, "path", path)
	}

	for _, fn := range s.observers {
		fn(entry)
	}
	return entry
}

func (s *Storage) append(entry model.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append(s.logs, entry)
	if _, ok := s.sinkSet[entry.Source()]; !ok {
		s.sinkSet[entry.Source()] = struct{}{}
		s.sinks = append(s.sinks, entry.Source())
	}
}

// Logs returns a snapshot of every recorded entry in call order.
func (s *Storage) Logs() []model.Log {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Log, len(s.logs))
	copy(out, s.logs)
	return out
}

// Len returns the number of recorded entries.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// Sinks returns the distinct file paths entries were routed to, in first-use order.
func (s *Storage) Sinks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sinks)
}

// SinkCount returns the number of distinct file paths entries were routed to.
func (s *Storage) SinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sinks)
}

// WriteError reports a failed append to an entry's file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("append to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// writeToFile appends the entry's line to path, creating the file if needed.
// Parent directories are not created. The caller holds the path's lock.
func (s *Storage) writeToFile(path string, entry model.Log) (err error) {
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()

	if _, err := f.WriteString(entry.Line()); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func (s *Storage) fileLock(path string) *sync.Mutex {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	lock, ok := s.fileLocks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.fileLocks[path] = lock
	}
	return lock
}
