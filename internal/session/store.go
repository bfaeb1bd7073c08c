package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// ErrSessionNotFound marks lookups of unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// schema for the session persistence layer. Version is tracked in the
// schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
    id              TEXT PRIMARY KEY,
    problem         TEXT NOT NULL,
    workspace_root  TEXT NOT NULL DEFAULT '',
    max_steps       INTEGER NOT NULL,
    current_step    INTEGER NOT NULL DEFAULT 0,
    stop_reason     TEXT NOT NULL DEFAULT '',
    root_cause      TEXT NOT NULL DEFAULT '',
    confidence      TEXT NOT NULL DEFAULT '',
    diagnosis       TEXT NOT NULL DEFAULT '{}',
    hypotheses      TEXT NOT NULL DEFAULT '[]',
    evidence_log    TEXT NOT NULL DEFAULT '[]',
    report          TEXT NOT NULL DEFAULT '',
    started_at      DATETIME NOT NULL,
    finished_at     DATETIME
);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at DESC);

CREATE TABLE IF NOT EXISTS probe_calls (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    step        INTEGER NOT NULL,
    probe_name  TEXT NOT NULL,
    args        TEXT NOT NULL DEFAULT '{}',
    signature   TEXT NOT NULL DEFAULT '',
    success     INTEGER NOT NULL DEFAULT 1,
    error       TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL DEFAULT '{}',
    started_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_probe_calls_session ON probe_calls(session_id, step ASC);
`,
	},
}

// Store persists finished debug sessions.
type Store interface {
	SaveSession(ctx context.Context, s *DebugSession, report string) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, limit int) ([]*SessionSummary, error)
	Close() error
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID         string
	Problem    string
	Steps      int
	MaxSteps   int
	RootCause  string
	Confidence string
	StartedAt  time.Time
	FinishedAt time.Time
}

// SessionRecord is a fully loaded persisted session.
type SessionRecord struct {
	SessionSummary
	WorkspaceRoot string
	StopReason    string
	Diagnosis     Diagnosis
	Hypotheses    []Hypothesis
	EvidenceLog   []string
	Report        string
	ProbeCalls    []ProbeCallRecord
}

// ProbeCallRecord is one persisted probe execution.
type ProbeCallRecord struct {
	Step       int
	ProbeName  string
	Args       string
	Signature  string
	Success    bool
	Error      string
	Result     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory
// store.
func NewStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

// SaveSession writes a finished session and its probe calls in one
// transaction. Re-saving the same id replaces everything.
func (s *sqliteStore) SaveSession(ctx context.Context, sess *DebugSession, report string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rootCause, confidence := "", ""
	diagnosisJSON := "{}"
	if sess.Diagnosis != nil {
		rootCause = sess.Diagnosis.RootCause
		confidence = sess.Diagnosis.Confidence
		diagnosisJSON = mustJSON(sess.Diagnosis)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO sessions(id, problem, workspace_root, max_steps, current_step, stop_reason,
                             root_cause, confidence, diagnosis, hypotheses, evidence_log, report,
                             started_at, finished_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            current_step = excluded.current_step,
            stop_reason  = excluded.stop_reason,
            root_cause   = excluded.root_cause,
            confidence   = excluded.confidence,
            diagnosis    = excluded.diagnosis,
            hypotheses   = excluded.hypotheses,
            evidence_log = excluded.evidence_log,
            report       = excluded.report,
            finished_at  = excluded.finished_at
    `,
		sess.ID, sess.InitialProblem, sess.WorkspaceRoot, sess.MaxSteps, sess.CurrentStep,
		sess.StopReason, rootCause, confidence, diagnosisJSON,
		mustJSON(sess.Hypotheses), mustJSON(sess.EvidenceLog), report,
		sess.StartedAt.UTC(), nullableTime(sess.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM probe_calls WHERE session_id=?`, sess.ID); err != nil {
		return fmt.Errorf("delete probe calls: %w", err)
	}
	for _, call := range sess.ProbeHistory {
		success := 0
		if call.Succeeded() {
			success = 1
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO probe_calls(session_id, step, probe_name, args, signature, success, error, result, started_at, finished_at)
            VALUES(?,?,?,?,?,?,?,?,?,?)
        `, sess.ID, call.Step, call.ProbeName, mustJSON(call.Args), call.Signature,
			success, call.Error, mustJSON(call.Result), call.StartedAt.UTC(), call.FinishedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert probe call: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, problem, workspace_root, max_steps, current_step, stop_reason,
               root_cause, confidence, diagnosis, hypotheses, evidence_log, report,
               started_at, finished_at
        FROM sessions WHERE id=?`, id)

	rec := &SessionRecord{}
	var diagnosisJSON, hypothesesJSON, evidenceJSON string
	var finished sql.NullTime
	err := row.Scan(&rec.ID, &rec.Problem, &rec.WorkspaceRoot, &rec.MaxSteps, &rec.Steps,
		&rec.StopReason, &rec.RootCause, &rec.Confidence, &diagnosisJSON,
		&hypothesesJSON, &evidenceJSON, &rec.Report, &rec.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if finished.Valid {
		rec.FinishedAt = finished.Time
	}
	_ = json.Unmarshal([]byte(diagnosisJSON), &rec.Diagnosis)
	_ = json.Unmarshal([]byte(hypothesesJSON), &rec.Hypotheses)
	_ = json.Unmarshal([]byte(evidenceJSON), &rec.EvidenceLog)

	rows, err := s.db.QueryContext(ctx, `
        SELECT step, probe_name, args, signature, success, error, result, started_at, finished_at
        FROM probe_calls WHERE session_id=? ORDER BY step ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query probe calls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var call ProbeCallRecord
		var success int
		if err := rows.Scan(&call.Step, &call.ProbeName, &call.Args, &call.Signature,
			&success, &call.Error, &call.Result, &call.StartedAt, &call.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan probe call: %w", err)
		}
		call.Success = success == 1
		rec.ProbeCalls = append(rec.ProbeCalls, call)
	}
	return rec, rows.Err()
}

func (s *sqliteStore) ListSessions(ctx context.Context, limit int) ([]*SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, problem, current_step, max_steps, root_cause, confidence, started_at, finished_at
        FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionSummary
	for rows.Next() {
		rec := &SessionSummary{}
		var finished sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Problem, &rec.Steps, &rec.MaxSteps,
			&rec.RootCause, &rec.Confidence, &rec.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func mustJSON(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(buf)
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
