package report

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"stepwright/internal/healing"
	"stepwright/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	journey_id  TEXT NOT NULL,
	status      TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	ended_at    TEXT
);
CREATE TABLE IF NOT EXISTS attempts (
	session_id   TEXT NOT NULL,
	attempt      INTEGER NOT NULL,
	fix_type     TEXT NOT NULL,
	failure_type TEXT NOT NULL,
	result       TEXT NOT NULL,
	duration_ms  INTEGER NOT NULL,
	PRIMARY KEY (session_id, attempt)
);
`

// Index is a SQLite-backed cache of session documents, keyed by session id
// so re-indexing an updated log replaces its rows.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the index database.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open report index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init report index: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert replaces the indexed rows for one session.
func (ix *Index) Upsert(s *healing.Session) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("begin index txn: %w", err)
	}
	defer tx.Rollback()

	var ended any
	if s.EndedAt != nil {
		ended = s.EndedAt.Format(time.RFC3339)
	}
	if _, err := tx.Exec(
		`INSERT INTO sessions (id, journey_id, status, attempts, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, attempts=excluded.attempts, ended_at=excluded.ended_at`,
		s.ID, s.JourneyID, string(s.Status), len(s.Attempts),
		s.StartedAt.Format(time.RFC3339), ended,
	); err != nil {
		return fmt.Errorf("index session %s: %w", s.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM attempts WHERE session_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear attempts for %s: %w", s.ID, err)
	}
	for _, a := range s.Attempts {
		if _, err := tx.Exec(
			`INSERT INTO attempts (session_id, attempt, fix_type, failure_type, result, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, a.Attempt, string(a.FixType), string(a.FailureType), string(a.Result), a.DurationMs,
		); err != nil {
			return fmt.Errorf("index attempt %d of %s: %w", a.Attempt, s.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index txn: %w", err)
	}
	logging.Report("Indexed session %s (%s, %d attempts)", s.ID, s.Status, len(s.Attempts))
	return nil
}

// Totals computes suite totals from the index.
func (ix *Index) Totals() (Totals, error) {
	var t Totals
	row := ix.db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(status = 'healed'), 0),
		COALESCE(SUM(status = 'failed'), 0),
		COALESCE(SUM(status = 'exhausted'), 0),
		COALESCE(SUM(attempts), 0)
	  FROM sessions`)
	if err := row.Scan(&t.Sessions, &t.Healed, &t.Failed, &t.Exhausted, &t.Attempts); err != nil {
		return t, fmt.Errorf("query session totals: %w", err)
	}

	var err error
	if t.TopFixes, err = ix.ranked(`SELECT fix_type, COUNT(*) FROM attempts GROUP BY fix_type ORDER BY COUNT(*) DESC, fix_type ASC`); err != nil {
		return t, err
	}
	if t.TopCategories, err = ix.ranked(`SELECT failure_type, COUNT(*) FROM attempts GROUP BY failure_type ORDER BY COUNT(*) DESC, failure_type ASC`); err != nil {
		return t, err
	}
	return t, nil
}

func (ix *Index) ranked(query string) ([]CountEntry, error) {
	rows, err := ix.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query ranked counts: %w", err)
	}
	defer rows.Close()

	var out []CountEntry
	for rows.Next() {
		var e CountEntry
		if err := rows.Scan(&e.Name, &e.Count); err != nil {
			return nil, fmt.Errorf("scan ranked count: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
