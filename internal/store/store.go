package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"mediascan/internal/logging"
	"mediascan/internal/mediatypes"
	"mediascan/internal/metrics"
	"mediascan/internal/result"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Entry is the stored state of one scanned file.
type Entry struct {
	Path      string
	Type      mediatypes.MediaType
	Size      int64
	ModTime   time.Time
	MimeType  string
	ProfileID string
	ScannedAt time.Time
}

// Store is the scanned-file database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// New opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func New(ctx context.Context, path string) (*Store, error) {
	logging.Info("State database path: %s", path)

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	if path == ":memory:" {
		connStr = ":memory:"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One scanner writes; a single connection keeps in-memory stores intact.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("State database initialized at %s", path)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scanned_files (
		path TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL,
		mime_type TEXT,
		profile_id TEXT,
		scanned_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scanned_files_type ON scanned_files(type);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func observe(op string, start time.Time, err error) {
	metrics.StoreQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(op, status).Inc()
}

// Record stores the state of a delivered result.
func (s *Store) Record(ctx context.Context, r *result.Result) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func(start time.Time) { observe("record", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO scanned_files (path, type, size, mod_time, mime_type, profile_id, scanned_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		type = excluded.type,
		size = excluded.size,
		mod_time = excluded.mod_time,
		mime_type = excluded.mime_type,
		profile_id = excluded.profile_id,
		scanned_at = excluded.scanned_at
	`, r.Path, string(r.Type), r.Size, r.ModTime.UnixNano(), r.MimeType, r.ProfileID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record %s: %w", r.Path, err)
	}
	return nil
}

// Lookup returns the stored entry for path, or nil when there is none.
func (s *Store) Lookup(ctx context.Context, path string) (_ *Entry, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defer func(start time.Time) { observe("lookup", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		e                  Entry
		typ                string
		modTime, scannedAt int64
		mime, profile      sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
	SELECT path, type, size, mod_time, mime_type, profile_id, scanned_at
	FROM scanned_files WHERE path = ?
	`, path).Scan(&e.Path, &typ, &e.Size, &modTime, &mime, &profile, &scannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", path, err)
	}

	e.Type = mediatypes.MediaType(typ)
	e.ModTime = time.Unix(0, modTime)
	e.MimeType = mime.String
	e.ProfileID = profile.String
	e.ScannedAt = time.Unix(scannedAt, 0)
	return &e, nil
}

// IsUnchanged reports whether path was recorded with the size and
// modification time in info.
func (s *Store) IsUnchanged(ctx context.Context, path string, info fs.FileInfo) (bool, error) {
	e, err := s.Lookup(ctx, path)
	if err != nil || e == nil {
		return false, err
	}
	return e.Size == info.Size() && e.ModTime.Equal(info.ModTime()), nil
}

// Clear deletes every scanned-file record and returns how many there were.
func (s *Store) Clear(ctx context.Context) (n int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func(start time.Time) { observe("clear", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, "DELETE FROM scanned_files")
	if err != nil {
		return 0, fmt.Errorf("clear scanned files: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, err
	}
	logging.Info("Cleared %d scanned file records", n)
	return n, nil
}

// Remove deletes the record for path.
func (s *Store) Remove(ctx context.Context, path string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func(start time.Time) { observe("remove", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "DELETE FROM scanned_files WHERE path = ?", path)
	return err
}

// GetStats counts stored files by type. It implements metrics.StatsProvider.
func (s *Store) GetStats() metrics.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM scanned_files GROUP BY type")
	if err != nil {
		observe("stats", start, err)
		logging.Warn("Failed to count scanned files: %v", err)
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			observe("stats", start, err)
			logging.Warn("Failed to read scanned file counts: %v", err)
			return stats
		}
		stats.TotalFiles += n
		switch mediatypes.MediaType(typ) {
		case mediatypes.Video:
			stats.TotalVideos = n
		case mediatypes.Audio:
			stats.TotalAudio = n
		case mediatypes.Image:
			stats.TotalImages = n
		}
	}
	observe("stats", start, rows.Err())
	return stats
}
