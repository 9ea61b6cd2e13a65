// Package session manages the lifecycle of one open database file. A Session
// owns the in-memory database, tracks unsaved changes and watches the backing
// file so a caller can detect it changing underneath an open session. There
// is no implicit global session; collaborators hold the handle explicitly and
// close it before reopening the file elsewhere.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/picsou-app/picsou/exchange"
	"github.com/picsou-app/picsou/ledger"
	"github.com/picsou-app/picsou/query"
	"github.com/picsou-app/picsou/recurrence"
	"github.com/picsou-app/picsou/store"
)

// UnsavedSessionError is returned by Save when the session has never been
// bound to a path. Use SaveAs first.
type UnsavedSessionError struct{}

func (e *UnsavedSessionError) Error() string {
	return "session has no backing file, use SaveAs"
}

// ClosedSessionError is returned by any method called after Close.
type ClosedSessionError struct{}

func (e *ClosedSessionError) Error() string {
	return "session is closed"
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for operational events. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithoutWatch disables the backing-file watcher.
func WithoutWatch() Option {
	return func(s *Session) { s.watch = false }
}

// Session is the handle to one open database. Methods are safe for
// concurrent use.
type Session struct {
	mu     sync.Mutex
	db     *ledger.Database
	path   string
	dirty  bool
	closed bool

	logger *slog.Logger
	watch  bool

	watcher     *fsnotify.Watcher
	cancelWatch context.CancelFunc
	changed     chan struct{}

	// lastSave suppresses watcher events caused by our own writes.
	lastSave time.Time
}

// Create starts a session over a fresh, not-yet-persisted database.
func Create(name, description string, opts ...Option) *Session {
	s := newSession(ledger.New(name, description), "", opts...)
	s.dirty = true
	s.logger.Info("session created", "database", name)
	return s
}

// Open reads a database file and starts a session over it. The backing file
// is watched for external modification unless WithoutWatch is given.
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db, err := store.Load(ctx, data)
	if err != nil {
		return nil, err
	}

	s := newSession(db, path, opts...)
	if s.watch {
		if err := s.startWatcher(); err != nil {
			return nil, err
		}
	}
	s.logger.Info("session opened", "path", path, "database", db.Name(), "users", len(db.Users()))
	return s, nil
}

func newSession(db *ledger.Database, path string, opts ...Option) *Session {
	s := &Session{
		db:      db,
		path:    path,
		logger:  slog.Default(),
		watch:   true,
		changed: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the session's database. Callers that mutate it directly
// must follow up with MarkDirty.
func (s *Session) Database() *ledger.Database {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Path returns the backing file path, empty for a never-saved session.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Dirty reports whether the session holds changes not yet written to disk.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkDirty records that the database was mutated outside the session's own
// entry points.
func (s *Session) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// Changed delivers a signal when the backing file is modified by something
// other than this session. At most one notification is buffered.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

// Save writes the database back to its backing file.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()
	if path == "" {
		return &UnsavedSessionError{}
	}
	return s.SaveAs(ctx, path)
}

// SaveAs writes the database to path and makes it the backing file. The
// write goes through a temporary file in the same directory and a rename,
// so a crash mid-write never truncates an existing database.
func (s *Session) SaveAs(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &ClosedSessionError{}
	}
	db := s.db
	s.mu.Unlock()

	data, err := store.Save(ctx, db)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("save database: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save database: %w", err)
	}

	s.mu.Lock()
	s.lastSave = time.Now()
	s.mu.Unlock()

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save database: %w", err)
	}

	s.mu.Lock()
	repointed := s.path != path
	s.path = path
	s.dirty = false
	s.mu.Unlock()

	if repointed {
		s.restartWatcher()
	}
	s.logger.Info("session saved", "path", path, "bytes", len(data))
	return nil
}

// Close releases the session and stops the file watcher. Unsaved changes are
// discarded; check Dirty before closing if that matters.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	path := s.path
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.logger.Info("session closed", "path", path)
	return nil
}

// MaterializeDue inserts the concrete operations every recurring template
// owes up to now, across all users and non-archived accounts.
func (s *Session) MaterializeDue(ctx context.Context, now ledger.Date) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, &ClosedSessionError{}
	}
	db := s.db
	s.mu.Unlock()

	created, err := recurrence.MaterializeDue(db, now)
	if err != nil {
		return created, err
	}
	if created > 0 {
		s.MarkDirty()
	}
	s.logger.Info("recurring operations materialized", "created", created, "through", now.String())
	return created, nil
}

// Search evaluates a filter over the database and collects the matches.
func (s *Session) Search(ctx context.Context, filter query.Filter) ([]*ledger.Operation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, &ClosedSessionError{}
	}
	db := s.db
	s.mu.Unlock()

	q, err := query.Compile(filter)
	if err != nil {
		return nil, err
	}
	return q.Evaluate(ctx, db).Collect()
}

// Import reads external operations into an account.
func (s *Session) Import(ctx context.Context, accountID uuid.UUID, format exchange.Format, r io.Reader, opts exchange.Options) (exchange.Report, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return exchange.Report{}, &ClosedSessionError{}
	}
	db := s.db
	s.mu.Unlock()

	report, err := exchange.Import(ctx, db, accountID, format, r, opts)
	if err != nil {
		return report, err
	}
	if report.Imported > 0 {
		s.MarkDirty()
	}
	s.logger.Info("import committed", "format", format.String(), "imported", report.Imported, "skipped", report.Skipped)
	return report, nil
}

// Export writes the operations matching a filter to w.
func (s *Session) Export(ctx context.Context, filter query.Filter, format exchange.Format, w io.Writer) (int, error) {
	ops, err := s.Search(ctx, filter)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if err := exchange.Export(ctx, db, ops, format, w); err != nil {
		return 0, err
	}
	s.logger.Info("export written", "format", format.String(), "operations", len(ops))
	return len(ops), nil
}

func (s *Session) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch database: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.watcher = watcher
	s.cancelWatch = cancel
	s.mu.Unlock()

	go s.runWatcher(ctx, watcher, s.path)
	return nil
}

func (s *Session) restartWatcher() {
	s.mu.Lock()
	watch := s.watch && !s.closed
	cancel := s.cancelWatch
	s.cancelWatch = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !watch {
		return
	}
	if err := s.startWatcher(); err != nil {
		s.logger.Warn("file watcher unavailable", "error", err)
	}
}

// runWatcher debounces filesystem events, drops the ones caused by the
// session's own saves, and signals the rest on the changed channel.
func (s *Session) runWatcher(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	const debounceDelay = 100 * time.Millisecond

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Remove/Rename happen on atomic saves by other writers too.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// An atomic save replaces the inode, which ends the watch on
			// the old one. Re-add the path so later writes are still seen.
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				s.rewatch(ctx, watcher, path)
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				s.notifyChanged()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

// rewatch re-adds a watch on path, retrying briefly in case the writer has
// removed the old file but not yet renamed the new one into place.
func (s *Session) rewatch(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	const (
		attempts = 20
		backoff  = 25 * time.Millisecond
	)

	var err error
	for i := 0; i < attempts; i++ {
		if err = watcher.Add(path); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
	s.logger.Warn("file watcher could not re-add path", "path", path, "error", err)
}

func (s *Session) notifyChanged() {
	s.mu.Lock()
	ownWrite := time.Since(s.lastSave) < time.Second
	path := s.path
	s.mu.Unlock()
	if ownWrite {
		return
	}

	s.logger.Warn("backing file changed externally", "path", path)
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
