// Package store keeps a local history of query runs in sqlite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	s := &Store{writeDB: writeDB}
	// Schema must exist before a read-only handle can see it.
	if err := s.init(); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	s.readDB = readDB
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id       TEXT PRIMARY KEY,
			kind     TEXT NOT NULL,
			label    TEXT NOT NULL DEFAULT '',
			params   TEXT NOT NULL DEFAULT '{}',
			fetched  INTEGER NOT NULL DEFAULT 0,
			kept     INTEGER NOT NULL DEFAULT 0,
			ran_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_ran_at ON runs(ran_at DESC);

		CREATE TABLE IF NOT EXISTS run_videos (
			run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
			title         TEXT NOT NULL,
			url           TEXT NOT NULL,
			published_at  DATETIME,
			view_count    INTEGER NOT NULL,
			like_ratio    REAL NOT NULL,
			comment_ratio REAL NOT NULL,
			PRIMARY KEY (run_id, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// RecordRun stores a run and its presented video rows in one transaction.
// params is serialised as JSON. The new run id is returned.
func (s *Store) RecordRun(kind Kind, label string, params any, fetched, kept int, videos []VideoRow) (string, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	id := uuid.NewString()

	tx, err := s.writeDB.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, kind, label, params, fetched, kept, ran_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(kind), label, string(p), fetched, kept, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if len(videos) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO run_videos (run_id, position, title, url, published_at, view_count, like_ratio, comment_ratio)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return "", err
		}
		defer stmt.Close()

		for i, v := range videos {
			var published any
			if !v.PublishedAt.IsZero() {
				published = v.PublishedAt.UTC()
			}
			if _, err := stmt.Exec(id, i, v.Title, v.URL, published, v.ViewCount, v.LikeRatio, v.CommentRatio); err != nil {
				return "", fmt.Errorf("inserting video %d of run %s: %w", i, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Runs lists runs newest first.
func (s *Store) Runs(opts QueryOpts) ([]Run, error) {
	var (
		where []string
		args  []interface{}
	)
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if !opts.Since.IsZero() {
		where = append(where, "ran_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	query := "SELECT id, kind, label, params, fetched, kept, ran_at FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ran_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r    Run
			kind string
		)
		if err := rows.Scan(&r.ID, &kind, &r.Label, &r.Params, &r.Fetched, &r.Kept, &r.RanAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Kind = Kind(kind)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunVideos returns the stored rows of a video run in presented order.
func (s *Store) RunVideos(runID string) ([]VideoRow, error) {
	rows, err := s.readDB.Query(`
		SELECT run_id, position, title, url, published_at, view_count, like_ratio, comment_ratio
		FROM run_videos WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run videos: %w", err)
	}
	defer rows.Close()

	var out []VideoRow
	for rows.Next() {
		var (
			v         VideoRow
			published sql.NullTime
		)
		if err := rows.Scan(&v.RunID, &v.Position, &v.Title, &v.URL, &published, &v.ViewCount, &v.LikeRatio, &v.CommentRatio); err != nil {
			return nil, fmt.Errorf("scanning run video: %w", err)
		}
		if published.Valid {
			v.PublishedAt = published.Time
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Prune deletes runs older than olderThan, with their videos, and reclaims space.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	tx, err := s.writeDB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM run_videos WHERE run_id IN (SELECT id FROM runs WHERE ran_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("pruning run videos: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE ran_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		if _, err := s.writeDB.Exec("VACUUM"); err != nil {
			return n, fmt.Errorf("vacuum: %w", err)
		}
	}
	return n, nil
}

// Stats reports the number of stored runs and the database file size.
func (s *Store) Stats(dbPath string) (int, int64, error) {
	var count int
	if err := s.readDB.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("counting runs: %w", err)
	}
	fi, err := os.Stat(dbPath)
	if err != nil {
		return count, 0, err
	}
	return count, fi.Size(), nil
}
