package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samvad-hq/metalpal/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS releases (
    pos          INTEGER PRIMARY KEY,
    release_date TEXT NOT NULL,
    artist       TEXT NOT NULL,
    album        TEXT NOT NULL,
    skip         INTEGER NOT NULL DEFAULT 0,
    payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_releases_date ON releases(release_date);
`

// sqliteStore keeps the history in an SQLite database, one row per release.
type sqliteStore struct {
	db   *sql.DB
	path string
}

func openSQLite(path string) (Store, error) {
	if err := requirePath(TypeSQLite, path); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &PersistenceError{Backend: TypeSQLite, Op: "create directory", Path: path, Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Backend: TypeSQLite, Op: "open", Path: path, Err: err}
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, &PersistenceError{Backend: TypeSQLite, Op: "open", Path: path, Err: fmt.Errorf("apply pragma %q: %w", pragma, execErr)}
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Backend: TypeSQLite, Op: "migrate", Path: path, Err: err}
	}

	return &sqliteStore{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (*State, error) {
	meta := map[string]string{}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, s.fail("load meta", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, s.fail("load meta", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, s.fail("load meta", err)
	}
	rows.Close()

	st := &State{}
	if raw, ok := meta[metaLastUpdate]; ok {
		if err := st.LastUpdate.UnmarshalText([]byte(raw)); err != nil {
			return nil, s.fail("decode last update", err)
		}
	}
	if raw, ok := meta[metaSettings]; ok {
		if err := json.Unmarshal([]byte(raw), &st.Settings); err != nil {
			return nil, s.fail("decode settings", err)
		}
	}

	releases, err := s.loadReleases(ctx)
	if err != nil {
		return nil, err
	}
	if len(meta) == 0 && len(releases) == 0 {
		return nil, ErrNotFound
	}
	st.Releases = normalizeReleases(releases)
	return st, nil
}

func (s *sqliteStore) loadReleases(ctx context.Context) ([]domain.Release, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pos, payload FROM releases ORDER BY pos`)
	if err != nil {
		return nil, s.fail("load releases", err)
	}
	defer rows.Close()

	var out []domain.Release
	for rows.Next() {
		var (
			pos     int64
			payload string
		)
		if err := rows.Scan(&pos, &payload); err != nil {
			return nil, s.fail("load releases", err)
		}
		var r domain.Release
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, s.fail("decode release", fmt.Errorf("position %d: %w", pos, err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("load releases", err)
	}
	return out, nil
}

// Save replaces the stored history in a single transaction.
func (s *sqliteStore) Save(ctx context.Context, st *State) (err error) {
	if st == nil {
		return s.fail("save", errors.New("state is nil"))
	}

	lastUpdate, err := st.LastUpdate.MarshalText()
	if err != nil {
		return s.fail("encode last update", err)
	}
	settings, err := json.Marshal(st.Settings)
	if err != nil {
		return s.fail("encode settings", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM releases`); err != nil {
		return s.fail("clear releases", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO releases (pos, release_date, artist, album, skip, payload) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return s.fail("prepare insert", err)
	}
	defer stmt.Close()

	for i, r := range normalizeReleases(st.Releases) {
		payload, mErr := json.Marshal(r)
		if mErr != nil {
			return s.fail("encode release", fmt.Errorf("position %d: %w", i, mErr))
		}
		if _, err = stmt.ExecContext(ctx, i, r.Date.String(), r.Artist, r.Album, boolToInt(r.Skip), string(payload)); err != nil {
			return s.fail("insert release", err)
		}
	}

	upsert := `INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err = tx.ExecContext(ctx, upsert, metaLastUpdate, string(lastUpdate)); err != nil {
		return s.fail("write meta", err)
	}
	if _, err = tx.ExecContext(ctx, upsert, metaSettings, string(settings)); err != nil {
		return s.fail("write meta", err)
	}
	if _, err = tx.ExecContext(ctx, upsert, "saved_at", time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return s.fail("write meta", err)
	}

	if err = tx.Commit(); err != nil {
		return s.fail("commit", err)
	}
	return nil
}

func (s *sqliteStore) fail(op string, err error) error {
	return &PersistenceError{Backend: TypeSQLite, Op: op, Path: s.path, Err: err}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
