package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const lastScanKey = "last_scan"

// Run summarizes one completed scan.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	Duration  float64   `json:"durationSeconds"`
	Results   int       `json:"results"`
	Errors    int       `json:"errors"`
	Skipped   int       `json:"skipped"`
}

// GetMetadata retrieves a metadata value by key. It returns sql.ErrNoRows
// when the key does not exist.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SetLastScan records run as the most recent scan.
func (s *Store) SetLastScan(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode scan run: %w", err)
	}
	return s.SetMetadata(ctx, lastScanKey, string(data))
}

// GetLastScan returns the most recent scan, or nil if none was recorded.
func (s *Store) GetLastScan(ctx context.Context) (*Run, error) {
	value, err := s.GetMetadata(ctx, lastScanKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal([]byte(value), &run); err != nil {
		return nil, fmt.Errorf("decode scan run: %w", err)
	}
	return &run, nil
}
