package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/ccs-cadence/internal/config"
	"github.com/danielpatrickdp/ccs-cadence/internal/harness"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	profile       TEXT NOT NULL,
	config_json   TEXT NOT NULL,
	summary_json  TEXT,
	started_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS steps (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	t_ms          INTEGER NOT NULL,
	class_id      INTEGER NOT NULL,
	u             REAL NOT NULL,
	s             REAL NOT NULL,
	ccs           REAL NOT NULL,
	mode          TEXT NOT NULL,
	interval_ms   INTEGER NOT NULL,
	changed       INTEGER NOT NULL,
	reason        TEXT,
	err           TEXT,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS transitions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	t_ms          INTEGER NOT NULL,
	from_mode     TEXT NOT NULL,
	to_mode       TEXT NOT NULL,
	interval_ms   INTEGER NOT NULL,
	ccs           REAL NOT NULL,
	reason        TEXT,
	err           TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store persists harness runs and live mode transitions in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region runs
// BeginRun registers a new run under a fresh id.
func (s *Store) BeginRun(source string, cfg config.Config) (RunRecord, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return RunRecord{}, fmt.Errorf("marshal config: %w", err)
	}
	rec := RunRecord{
		RunID:      uuid.New().String(),
		Source:     source,
		Profile:    string(cfg.Profile),
		ConfigJSON: string(cfgJSON),
		StartedAt:  time.Now().UTC(),
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, source, profile, config_json, started_at) VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.Source, rec.Profile, rec.ConfigJSON, rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// FinishRun stores the run summary.
func (s *Store) FinishRun(runID string, summary harness.Summary) error {
	data, err := json.Marshal(summaryJSON(summary))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	res, err := s.db.Exec(`UPDATE runs SET summary_json = ? WHERE run_id = ?`, string(data), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: %s not found", runID)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, source, profile, config_json, COALESCE(summary_json, ''), started_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		if err := rows.Scan(&r.RunID, &r.Source, &r.Profile, &r.ConfigJSON, &r.SummaryJSON, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion runs

// #region steps
// AppendSteps writes harness records for a run in one transaction. Every
// record whose mode differs from the previous one also lands in
// transitions.
func (s *Store) AppendSteps(runID string, records []harness.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	prev := "QUIET"
	for _, r := range records {
		_, err := tx.Exec(
			`INSERT INTO steps (run_id, idx, t_ms, class_id, u, s, ccs, mode, interval_ms, changed, reason, err)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Index, r.T, r.Class.ID(), r.U, r.S, r.CCS, r.Mode.String(), r.IntervalMs,
			r.Changed, nullIfEmpty(r.Reason), nullIfEmpty(string(r.Err)),
		)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", r.Index, err)
		}
		if cur := r.Mode.String(); cur != prev {
			_, err := tx.Exec(
				`INSERT INTO transitions (run_id, t_ms, from_mode, to_mode, interval_ms, ccs, reason, err, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, r.T, prev, cur, r.IntervalMs, r.CCS, nullIfEmpty(r.Reason), nullIfEmpty(string(r.Err)), now,
			)
			if err != nil {
				return fmt.Errorf("insert transition at step %d: %w", r.Index, err)
			}
			prev = cur
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSteps returns a run's steps in order.
func (s *Store) GetSteps(runID string) ([]StepRow, error) {
	rows, err := s.db.Query(
		`SELECT run_id, idx, t_ms, class_id, u, s, ccs, mode, interval_ms, changed, COALESCE(reason, ''), COALESCE(err, '')
		 FROM steps WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("get steps: %w", err)
	}
	defer rows.Close()

	var out []StepRow
	for rows.Next() {
		var r StepRow
		if err := rows.Scan(&r.RunID, &r.Index, &r.TMs, &r.ClassID, &r.U, &r.S, &r.CCS,
			&r.Mode, &r.IntervalMs, &r.Changed, &r.Reason, &r.Err); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion steps

// #region transitions
// LogTransition writes one live mode transition.
func LogTransition(db *sql.DB, entry TransitionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO transitions (run_id, t_ms, from_mode, to_mode, interval_ms, ccs, reason, err, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.TMs,
		entry.FromMode,
		entry.ToMode,
		entry.IntervalMs,
		entry.CCS,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.Err),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log transition: %w", err)
	}
	return nil
}

// GetTransitions returns a run's transitions in insertion order.
func (s *Store) GetTransitions(runID string) ([]TransitionEntry, error) {
	rows, err := s.db.Query(
		`SELECT run_id, t_ms, from_mode, to_mode, interval_ms, ccs, COALESCE(reason, ''), COALESCE(err, ''), created_at
		 FROM transitions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("get transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionEntry
	for rows.Next() {
		var e TransitionEntry
		var created string
		if err := rows.Scan(&e.RunID, &e.TMs, &e.FromMode, &e.ToMode, &e.IntervalMs, &e.CCS,
			&e.Reason, &e.Err, &created); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion transitions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type summaryRow struct {
	TotalSteps  int            `json:"total_steps"`
	Transitions int            `json:"transitions"`
	Fallbacks   int            `json:"fallbacks"`
	ModeCounts  map[string]int `json:"mode_counts"`
	FinalMode   string         `json:"final_mode"`
	FinalErr    string         `json:"final_err,omitempty"`
	MeanCCS     float64        `json:"mean_ccs"`
	MaxCCS      float64        `json:"max_ccs"`
}

func summaryJSON(s harness.Summary) summaryRow {
	counts := make(map[string]int, len(s.ModeCounts))
	for m, n := range s.ModeCounts {
		counts[m.String()] = n
	}
	return summaryRow{
		TotalSteps:  s.TotalSteps,
		Transitions: s.Transitions,
		Fallbacks:   s.Fallbacks,
		ModeCounts:  counts,
		FinalMode:   s.FinalMode.String(),
		FinalErr:    string(s.FinalErr),
		MeanCCS:     s.MeanCCS,
		MaxCCS:      s.MaxCCS,
	}
}

// #endregion helpers
