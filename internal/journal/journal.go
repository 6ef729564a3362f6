package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tarsiflow/tarsiflow/internal/graph"
	"github.com/tarsiflow/tarsiflow/internal/value"
)

//go:embed schema.sql
var schemaSQL string

// Journal is an append-only SQLite log of refresh runs.
type Journal struct {
	db     *sql.DB
	clock  *Clock
	tokens TokenGenerator
}

// Entry is one recorded refresh run.
type Entry struct {
	ID       string
	Seq      int64
	Scenario string
	Input    string
	Delta    map[string]value.Value
}

// Open creates or opens a journal database at the given path.
// Applies required pragmas and the schema automatically; safe to call on
// an existing journal.
func Open(path string, tokens TokenGenerator) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	j := &Journal{db: db, tokens: tokens}
	if j.tokens == nil {
		j.tokens = UUIDv7Generator{}
	}

	// Resume the logical clock past any existing rows.
	var maxSeq sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM refreshes`).Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("read journal clock position: %w", err)
	}
	j.clock = NewClockAt(maxSeq.Int64)

	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends one refresh run and returns the stored entry, including
// its generated run token and seq.
func (j *Journal) Record(ctx context.Context, scenario, input string, delta graph.Delta) (Entry, error) {
	deltaJSON, err := json.Marshal(delta)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal delta: %w", err)
	}

	e := Entry{
		ID:       j.tokens.Generate(),
		Seq:      j.clock.Next(),
		Scenario: scenario,
		Input:    input,
		Delta:    delta,
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO refreshes (id, seq, scenario, input, delta, changed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.Seq, e.Scenario, e.Input, string(deltaJSON), len(delta))
	if err != nil {
		return Entry{}, fmt.Errorf("record refresh: %w", err)
	}

	return e, nil
}

// List returns all recorded runs in deterministic order: seq ascending,
// id ascending as tiebreak.
func (j *Journal) List(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, scenario, input, delta
		FROM refreshes
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list refreshes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var deltaJSON string
		if err := rows.Scan(&e.ID, &e.Seq, &e.Scenario, &e.Input, &deltaJSON); err != nil {
			return nil, fmt.Errorf("scan refresh row: %w", err)
		}
		e.Delta, err = unmarshalDelta(deltaJSON)
		if err != nil {
			return nil, fmt.Errorf("decode delta for run %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// unmarshalDelta decodes the stored JSON delta back into tagged values.
func unmarshalDelta(data string) (map[string]value.Value, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, err
	}
	delta := make(map[string]value.Value, len(raw))
	for name, rawVal := range raw {
		v, err := value.Unmarshal(rawVal)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		delta[name] = v
	}
	return delta, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
