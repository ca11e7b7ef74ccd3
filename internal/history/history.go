// SPDX-License-Identifier: MIT

// Package history records extraction outcomes in a local SQLite database.
//
// Recording is fire-and-forget: entries go into a buffered queue and a
// single background goroutine writes them, so a slow disk never holds up
// a response. When the queue is full the entry is dropped and counted.
// A nil *Store is valid and turns every method into a no-op, which is
// how the gateway runs when no history path is configured.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"

	"github.com/mediagate/mediagate/internal/metrics"
)

const (
	busyTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
	queueDepth   = 256

	schemaVersion = 1

	// DefaultLimit bounds Recent when the caller passes no usable limit.
	DefaultLimit = 50
	// MaxLimit is the hard ceiling for a single Recent query.
	MaxLimit = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          TEXT    NOT NULL,
	platform    TEXT    NOT NULL,
	content_type TEXT   NOT NULL,
	outcome     TEXT    NOT NULL,
	duration_ms INTEGER NOT NULL,
	items       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extractions_at ON extractions(at);
`

// Entry is one recorded extraction outcome.
type Entry struct {
	At          time.Time     `json:"timestamp"`
	Platform    string        `json:"platform"`
	ContentType string        `json:"contentType"`
	Outcome     string        `json:"outcome"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
	Items       int           `json:"items"`
}

// Store persists extraction history. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	queue chan Entry
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open creates or opens the history database at path and starts the
// background writer. WAL mode keeps readers from blocking the writer.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, busyTimeout.Milliseconds(),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One writer goroutine plus a handful of readers for the API.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), busyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		queue:  make(chan Entry, queueDepth),
		done:   make(chan struct{}),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	go s.run()

	logger.Info().Str("path", path).Msg("extraction history enabled")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// Record queues an entry for the background writer. It never blocks; when
// the queue is full or the store is closed the entry is dropped.
func (s *Store) Record(e Entry) {
	if s == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if e.DurationMS == 0 && e.Duration > 0 {
		e.DurationMS = e.Duration.Milliseconds()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		metrics.HistoryDroppedTotal.Inc()
		s.logger.Debug().Str("platform", e.Platform).Msg("history queue full, entry dropped")
	}
}

func (s *Store) run() {
	defer close(s.done)
	for e := range s.queue {
		s.write(e)
	}
}

func (s *Store) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extractions (at, platform, content_type, outcome, duration_ms, items)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Platform, e.ContentType, e.Outcome, e.DurationMS, e.Items,
	)
	if err != nil {
		metrics.HistoryDroppedTotal.Inc()
		s.logger.Warn().Err(err).Msg("history write failed")
		return
	}
	metrics.HistoryWritesTotal.Inc()
}

// Recent returns the newest entries, newest first. limit <= 0 falls back
// to DefaultLimit; anything above MaxLimit is clamped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT at, platform, content_type, outcome, duration_ms, items
		 FROM extractions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&at, &e.Platform, &e.ContentType, &e.Outcome, &e.DurationMS, &e.Items); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			e.At = ts
		}
		e.Duration = time.Duration(e.DurationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Enabled reports whether history recording is active.
func (s *Store) Enabled() bool { return s != nil }

// Close drains the queue, stops the writer and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.queue)
		<-s.done
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
