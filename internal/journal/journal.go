// Package journal persists published revisions to SQLite. Each commit is
// recorded with its branch token, a content fingerprint of the snapshot,
// and the snapshot entries as canonical JSON, so the schedule's history
// can be audited or diffed after the fact.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/gantry/internal/canonical"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Journal is a durable log of published revisions.
type Journal struct {
	db *sql.DB
}

// Record is one journaled commit.
type Record struct {
	Seq         int64
	Token       string
	Fingerprint string
	Entries     map[string]any
}

// Open creates or opens the journal database at path. WAL mode keeps
// reads concurrent with the single writer; the connection pool is pinned
// to one connection because SQLite allows one writer at a time.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append records a published revision. Appending the same sequence twice
// is a no-op, so replaying a commit stream is idempotent. The returned
// record carries the computed fingerprint.
func (j *Journal) Append(ctx context.Context, seq int64, token string, entries map[string]any) (Record, error) {
	fp, err := canonical.Fingerprint(canonical.DomainRevision, map[string]any{
		"seq":     seq,
		"token":   token,
		"entries": entries,
	})
	if err != nil {
		return Record{}, fmt.Errorf("append commit %d: %w", seq, err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("append commit %d: begin: %w", seq, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO commits (seq, token, fingerprint)
		VALUES (?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, seq, token, fp)
	if err != nil {
		return Record{}, fmt.Errorf("append commit %d: %w", seq, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already journaled; leave the original rows alone.
		return Record{Seq: seq, Token: token, Fingerprint: fp, Entries: entries}, tx.Commit()
	}

	for ident, value := range entries {
		data, err := canonical.Marshal(value)
		if err != nil {
			return Record{}, fmt.Errorf("append commit %d: entry %s: %w", seq, ident, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entries (commit_seq, identifier, value)
			VALUES (?, ?, ?)
		`, seq, ident, string(data)); err != nil {
			return Record{}, fmt.Errorf("append commit %d: entry %s: %w", seq, ident, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("append commit %d: commit: %w", seq, err)
	}
	return Record{Seq: seq, Token: token, Fingerprint: fp, Entries: entries}, nil
}

// List returns every journaled commit ordered by sequence, entries
// included.
func (j *Journal) List(ctx context.Context) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, token, fingerprint
		FROM commits
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Seq, &rec.Token, &rec.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}

	for i := range records {
		entries, err := j.readEntries(ctx, records[i].Seq)
		if err != nil {
			return nil, err
		}
		records[i].Entries = entries
	}
	return records, nil
}

// Get returns one journaled commit by sequence.
func (j *Journal) Get(ctx context.Context, seq int64) (Record, error) {
	var rec Record
	err := j.db.QueryRowContext(ctx, `
		SELECT seq, token, fingerprint FROM commits WHERE seq = ?
	`, seq).Scan(&rec.Seq, &rec.Token, &rec.Fingerprint)
	if err != nil {
		return Record{}, fmt.Errorf("get commit %d: %w", seq, err)
	}
	rec.Entries, err = j.readEntries(ctx, seq)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (j *Journal) readEntries(ctx context.Context, seq int64) (map[string]any, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT identifier, value
		FROM entries
		WHERE commit_seq = ?
		ORDER BY identifier ASC
	`, seq)
	if err != nil {
		return nil, fmt.Errorf("read entries %d: %w", seq, err)
	}
	defer rows.Close()

	entries := make(map[string]any)
	for rows.Next() {
		var ident, raw string
		if err := rows.Scan(&ident, &raw); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", ident, err)
		}
		entries[ident] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries %d: %w", seq, err)
	}
	return entries, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
