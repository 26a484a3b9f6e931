// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/pkg/types"
)

// SQLiteStore keeps every collection in one SQLite table, one row per
// record, unique on (collection, identity).
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
	locks  keyedMutex
}

// NewSQLiteStore opens or creates the database at path and its schema.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			identity TEXT NOT NULL,
			title TEXT,
			authors TEXT,
			paper_url TEXT,
			conference TEXT,
			year INTEGER,
			abstract TEXT,
			topics TEXT,
			keywords TEXT,
			meta TEXT,
			UNIQUE(collection, identity)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Handle implements RecordStore.
func (s *SQLiteStore) Handle(key types.CollectionKey) string {
	return fmt.Sprintf("sqlite://%s#%s", s.path, key.String())
}

// Load implements RecordStore.
func (s *SQLiteStore) Load(ctx context.Context, key types.CollectionKey) ([]types.Record, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	return s.query(ctx, s.db, key)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) query(ctx context.Context, q querier, key types.CollectionKey) ([]types.Record, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT title, authors, paper_url, conference, year, abstract, topics, keywords, meta
		 FROM records WHERE collection = ? ORDER BY seq`, key.String())
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", key, err)
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		var (
			r                                  types.Record
			title, url, conf, abstract         sql.NullString
			authors, topics, keywords, metaRaw sql.NullString
			year                               sql.NullInt64
		)
		if err := rows.Scan(&title, &authors, &url, &conf, &year, &abstract, &topics, &keywords, &metaRaw); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Title = title.String
		r.PaperURL = url.String
		r.Conference = conf.String
		r.Year = int(year.Int64)
		r.Abstract = abstract.String
		s.decodeJSON(authors, &r.Authors)
		s.decodeJSON(topics, &r.Topics)
		s.decodeJSON(keywords, &r.Keywords)
		s.decodeJSON(metaRaw, &r.Meta)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) decodeJSON(raw sql.NullString, dst any) {
	if !raw.Valid || raw.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw.String), dst); err != nil {
		s.logger.Warn().Err(err).Msg("skipping malformed JSON column")
	}
}

// Merge implements RecordStore. Duplicates are rejected by the unique
// constraint, so the insert count is the number added.
func (s *SQLiteStore) Merge(ctx context.Context, key types.CollectionKey, records []types.Record) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(key.String())
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		key.String(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, fmt.Errorf("registering collection: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (collection, identity, title, authors, paper_url, conference, year, abstract, topics, keywords, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, identity) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, r := range records {
		id := r.Identity()
		if id == "" {
			s.logger.Warn().Str("collection", key.String()).Msg("dropping record without title or url")
			continue
		}
		res, err := stmt.ExecContext(ctx, key.String(), id, r.Title,
			encodeJSON(r.Authors), r.PaperURL, r.Conference, r.Year, r.Abstract,
			encodeJSON(r.Topics), encodeJSON(r.Keywords), encodeJSON(r.Meta))
		if err != nil {
			return 0, fmt.Errorf("inserting %q: %w", r.Title, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing merge: %w", err)
	}
	return added, nil
}

// Delete implements RecordStore.
func (s *SQLiteStore) Delete(ctx context.Context, key types.CollectionKey, pred Predicate) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(key.String())
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.query(ctx, tx, key)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, r := range existing {
		if !pred(r) {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM records WHERE collection = ? AND identity = ?`, key.String(), r.Identity())
		if err != nil {
			return 0, fmt.Errorf("deleting %q: %w", r.Title, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return removed, nil
}

func encodeJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return nil
	}
	return string(data)
}
