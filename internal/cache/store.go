// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists completed searches in SQLite, keyed by requester and
// query fingerprint. Entries are never mutated in place: a refreshed search
// upserts over the old row. Staleness is checked lazily at read time against
// the configured TTL.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/olivia-legal/olivia/pkg/types"
)

const defaultTTL = 30 * time.Minute

// Store manages the search cache database.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	log *zap.Logger

	// now is swapped by tests to control TTL expiry.
	now func() time.Time
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries    int    `json:"entries"`
	Requesters int    `json:"requesters"`
	Oldest     string `json:"oldest,omitempty"`
	Newest     string `json:"newest,omitempty"`
}

// Open opens or creates the cache database and its schema.
func Open(cfg types.CacheConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = "olivia.db"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &Store{db: db, ttl: ttl, log: log, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			requester_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			query_json TEXT NOT NULL,
			result_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(requester_id, fingerprint)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_fingerprint ON searches(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Get returns the cached aggregate for (requester, fingerprint), or found ==
// false on a miss. A row older than the TTL is a miss; the stale row is left
// for Purge rather than deleted inline, keeping reads cheap.
func (s *Store) Get(ctx context.Context, requester, fingerprint string) (*types.Aggregate, bool, error) {
	var resultJSON string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json, created_at FROM searches
		 WHERE requester_id = ? AND fingerprint = ?`,
		requester, fingerprint,
	).Scan(&resultJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	if s.now().Sub(createdAt) > s.ttl {
		return nil, false, nil
	}

	var agg types.Aggregate
	if err := json.Unmarshal([]byte(resultJSON), &agg); err != nil {
		// A corrupt row is treated as a miss; the next Put replaces it.
		s.log.Warn("discarding corrupt cache entry",
			zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, false, nil
	}
	return &agg, true, nil
}

// Put upserts the aggregate under (requester, fingerprint) in one
// transaction. On conflict the newest result supersedes the old row.
func (s *Store) Put(ctx context.Context, requester, fingerprint string, query types.Query, agg *types.Aggregate) error {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("encoding query: %w", err)
	}
	resultJSON, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting cache transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO searches (requester_id, fingerprint, query_json, result_json, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(requester_id, fingerprint) DO UPDATE SET
			query_json = excluded.query_json,
			result_json = excluded.result_json,
			created_at = excluded.created_at`,
		requester, fingerprint, string(queryJSON), string(resultJSON), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return tx.Commit()
}

// Purge deletes rows older than the given age and reports how many went.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	return res.RowsAffected()
}

// Stats reports entry counts and the age range of the cache.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT requester_id),
			COALESCE(CAST(MIN(created_at) AS TEXT), ''),
			COALESCE(CAST(MAX(created_at) AS TEXT), '')
		 FROM searches`,
	).Scan(&st.Entries, &st.Requesters, &st.Oldest, &st.Newest)
	if err != nil {
		return Stats{}, fmt.Errorf("reading cache stats: %w", err)
	}
	return st, nil
}
