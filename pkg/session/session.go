// Package session keeps the traces opened during one analysis session and
// the active pair that queries run against.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/danpilch/kpstk/pkg/profile"
	"github.com/danpilch/kpstk/pkg/query"
	"github.com/danpilch/kpstk/pkg/trace"
)

var (
	// ErrNotOpened is returned when a reference names no opened trace.
	ErrNotOpened = errors.New("file not opened")
	// ErrNoActive is returned when querying before any trace is open.
	ErrNoActive = errors.New("no active profile")
	// ErrActiveCount is returned when activating other than one or two traces.
	ErrActiveCount = errors.New("one or two active files required")
)

// OpenError reports a trace that could not be opened or read. The session
// continues without it.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// Entry is one opened trace.
type Entry struct {
	Index   int
	Path    string
	Profile *profile.Profile
	Elapsed time.Duration
}

// Options configures a session.
type Options struct {
	Trace trace.Options
	// Parallelism bounds how many traces are parsed at once.
	Parallelism int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Trace:       trace.DefaultOptions(),
		Parallelism: runtime.GOMAXPROCS(0),
	}
}

// Session owns the opened profiles, the active pair and the query bound to
// it. It is safe for concurrent use.
type Session struct {
	opts   Options
	logger *logrus.Logger

	mu      sync.RWMutex
	entries []*Entry
	byPath  map[string]*Entry
	active  []*Entry
	query   *query.Query
}

// New creates an empty session.
func New(opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Session{
		opts:   opts,
		logger: logger,
		byPath: make(map[string]*Entry),
	}
}

// Open parses the given traces in parallel and adds them to the session.
// Paths already open are skipped. Traces that fail are reported in the
// returned error (a *multierror.Error of *OpenError) while the others are
// still added. The first two traces opened become the active pair.
func (s *Session) Open(ctx context.Context, paths ...string) error {
	var todo []string
	seen := make(map[string]bool)
	s.mu.RLock()
	for _, p := range paths {
		if _, ok := s.byPath[p]; ok || seen[p] {
			continue
		}
		seen[p] = true
		todo = append(todo, p)
	}
	s.mu.RUnlock()

	entries := make([]*Entry, len(todo))
	errs := make([]error, len(todo))

	var g errgroup.Group
	g.SetLimit(s.opts.Parallelism)
	for i, path := range todo {
		g.Go(func() error {
			start := time.Now()
			p, err := profile.Load(ctx, path, s.opts.Trace, s.logger)
			if err != nil {
				errs[i] = &OpenError{Path: path, Err: err}
				return nil
			}
			entries[i] = &Entry{Path: path, Profile: p, Elapsed: time.Since(start)}
			return nil
		})
	}
	// Workers never fail; per-file errors are collected above.
	_ = g.Wait()

	var result *multierror.Error
	s.mu.Lock()
	changed := false
	for i, e := range entries {
		if e == nil {
			s.logger.WithFields(logrus.Fields{
				"path":  todo[i],
				"error": errs[i],
			}).Warn("Cannot open trace")
			result = multierror.Append(result, errs[i])
			continue
		}
		// A concurrent Open may have added the same path while this one
		// was loading.
		if _, ok := s.byPath[e.Path]; ok {
			continue
		}
		s.warnDuplicate(e)
		e.Index = len(s.entries)
		s.entries = append(s.entries, e)
		s.byPath[e.Path] = e
		if len(s.active) < 2 {
			s.active = append(s.active, e)
			changed = true
		}
		s.logger.WithFields(logrus.Fields{
			"path":    e.Path,
			"index":   e.Index,
			"samples": e.Profile.Samples(),
			"total":   e.Profile.Total(),
			"elapsed": e.Elapsed,
		}).Info("Opened trace")
	}
	if changed {
		s.rebind()
	}
	s.mu.Unlock()

	return result.ErrorOrNil()
}

func (s *Session) warnDuplicate(e *Entry) {
	for _, other := range s.entries {
		if other.Profile.Digest() == e.Profile.Digest() {
			s.logger.WithFields(logrus.Fields{
				"path":      e.Path,
				"duplicate": other.Path,
			}).Warn("Trace has the same samples as an opened one")
			return
		}
	}
}

// rebind replaces the query for the current active pair, discarding the
// diff maps cached for the previous pair. Callers hold s.mu.
func (s *Session) rebind() {
	profiles := make([]*profile.Profile, len(s.active))
	for i, e := range s.active {
		profiles[i] = e.Profile
	}
	q, err := query.New(profiles...)
	if err != nil {
		s.query = nil
		return
	}
	s.query = q
}

// Resolve finds an opened trace by path or by index.
func (s *Session) Resolve(ref string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(ref)
}

func (s *Session) resolve(ref string) (*Entry, error) {
	if e, ok := s.byPath[ref]; ok {
		return e, nil
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < len(s.entries) {
		return s.entries[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotOpened, ref)
}

// SetActive makes one trace, or an ordered pair for diff mode, the target
// of subsequent queries.
func (s *Session) SetActive(refs ...string) error {
	if len(refs) < 1 || len(refs) > 2 {
		return fmt.Errorf("%w, got %d", ErrActiveCount, len(refs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]*Entry, 0, len(refs))
	for _, ref := range refs {
		e, err := s.resolve(ref)
		if err != nil {
			return err
		}
		active = append(active, e)
	}
	s.active = active
	s.rebind()

	s.logger.WithField("active", s.activeNames()).Debug("Switched active files")
	return nil
}

func (s *Session) activeNames() []string {
	names := make([]string, len(s.active))
	for i, e := range s.active {
		names[i] = e.Path
	}
	return names
}

// Query returns the query bound to the active pair.
func (s *Session) Query() (*query.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.query == nil {
		return nil, ErrNoActive
	}
	return s.query, nil
}

// Entries returns the opened traces in open order.
func (s *Session) Entries() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Active returns the active traces.
func (s *Session) Active() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.active))
	copy(out, s.active)
	return out
}

// Len returns the number of opened traces.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
