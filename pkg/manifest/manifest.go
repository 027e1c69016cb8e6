// Package manifest records generated samples in a SQLite database so a
// dataset can be summarized and audited without rereading its files.
package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned by Get for an unknown sample id.
var ErrNotFound = errors.New("manifest: sample not found")

// Entry is one generated sample.
type Entry struct {
	ID           string         `json:"id"`
	Seed         uint64         `json:"seed"`
	Combo        []string       `json:"combo"`
	Faces        int            `json:"faces"`
	Labels       map[string]int `json:"labels"` // face index -> label index
	GearTeeth    int            `json:"gear_teeth,omitempty"`
	GearModule   float64        `json:"gear_module,omitempty"`
	AppliedSlots int            `json:"applied_slots,omitempty"`
	Outcome      string         `json:"outcome"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Store is a manifest database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the manifest at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("manifest: create dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("manifest: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			id            TEXT PRIMARY KEY,
			seed          INTEGER NOT NULL,
			combo         TEXT NOT NULL,
			faces         INTEGER NOT NULL,
			labels_json   TEXT NOT NULL,
			gear_teeth    INTEGER NOT NULL DEFAULT 0,
			gear_module   REAL NOT NULL DEFAULT 0,
			applied_slots INTEGER NOT NULL DEFAULT 0,
			outcome       TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_samples_outcome ON samples(outcome);
		CREATE INDEX IF NOT EXISTS idx_samples_created ON samples(created_at);
	`)
	return err
}

// Record inserts or replaces e. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("manifest: entry has no id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	combo, err := json.Marshal(e.Combo)
	if err != nil {
		return fmt.Errorf("manifest: encode combo: %w", err)
	}
	labels, err := json.Marshal(e.Labels)
	if err != nil {
		return fmt.Errorf("manifest: encode labels: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO samples
			(id, seed, combo, faces, labels_json, gear_teeth, gear_module, applied_slots, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, int64(e.Seed), string(combo), e.Faces, string(labels),
		e.GearTeeth, e.GearModule, e.AppliedSlots, e.Outcome,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("manifest: record %s: %w", e.ID, err)
	}
	return nil
}

const selectCols = `id, seed, combo, faces, labels_json, gear_teeth, gear_module, applied_slots, outcome, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (Entry, error) {
	var (
		e             Entry
		seed          int64
		combo, labels string
		created       string
	)
	if err := r.Scan(&e.ID, &seed, &combo, &e.Faces, &labels,
		&e.GearTeeth, &e.GearModule, &e.AppliedSlots, &e.Outcome, &created); err != nil {
		return Entry{}, err
	}
	e.Seed = uint64(seed)
	if err := json.Unmarshal([]byte(combo), &e.Combo); err != nil {
		return Entry{}, fmt.Errorf("manifest: decode combo of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(labels), &e.Labels); err != nil {
		return Entry{}, fmt.Errorf("manifest: decode labels of %s: %w", e.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Entry{}, fmt.Errorf("manifest: decode created_at of %s: %w", e.ID, err)
	}
	e.CreatedAt = t
	return e, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM samples WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: get %s: %w", id, err)
	}
	return &e, nil
}

// List returns up to limit entries, oldest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT ` + selectCols + ` FROM samples ORDER BY created_at, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("manifest: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("manifest: list: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("manifest: list: %w", err)
	}
	return out, nil
}

// Stats summarizes the manifest.
type Stats struct {
	Samples      int            `json:"samples" yaml:"samples"`
	ByOutcome    map[string]int `json:"by_outcome" yaml:"by_outcome"`
	MeanTeeth    float64        `json:"mean_teeth" yaml:"mean_teeth"`
	AppliedSlots int            `json:"applied_slots" yaml:"applied_slots"`
}

// Stats counts samples by outcome and aggregates gear figures over samples
// that carry a gear.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByOutcome: make(map[string]int)}
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM samples GROUP BY outcome`)
	if err != nil {
		return Stats{}, fmt.Errorf("manifest: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return Stats{}, fmt.Errorf("manifest: stats: %w", err)
		}
		st.ByOutcome[outcome] = n
		st.Samples += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("manifest: stats: %w", err)
	}

	var mean sql.NullFloat64
	var slots sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT AVG(gear_teeth), SUM(applied_slots) FROM samples WHERE gear_teeth > 0`,
	).Scan(&mean, &slots)
	if err != nil {
		return Stats{}, fmt.Errorf("manifest: stats: %w", err)
	}
	st.MeanTeeth = mean.Float64
	st.AppliedSlots = int(slots.Int64)
	return st, nil
}
