package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vorion/trustgate/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	agent_id             TEXT PRIMARY KEY,
	hierarchy_level      INTEGER NOT NULL,
	score                INTEGER NOT NULL,
	tier                 TEXT NOT NULL,
	autonomy             TEXT NOT NULL,
	supervision          TEXT NOT NULL,
	on_probation         INTEGER NOT NULL DEFAULT 0,
	probation_started_at TEXT,
	last_activity_at     TEXT NOT NULL,
	created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trust_history (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id       TEXT NOT NULL,
	previous_score INTEGER NOT NULL,
	new_score      INTEGER NOT NULL,
	delta          INTEGER NOT NULL,
	tier           TEXT NOT NULL,
	reason         TEXT NOT NULL,
	change_type    TEXT NOT NULL,
	ts             TEXT NOT NULL,
	metadata       TEXT
);
CREATE INDEX IF NOT EXISTS idx_trust_history_agent ON trust_history(agent_id, seq);

CREATE TABLE IF NOT EXISTS decisions (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	agent_id        TEXT NOT NULL,
	hierarchy_level INTEGER NOT NULL,
	session_id      TEXT NOT NULL,
	decision_type   TEXT NOT NULL,
	rationale       TEXT NOT NULL,
	inputs          TEXT,
	alternatives    TEXT,
	confidence      REAL NOT NULL,
	outcome         TEXT NOT NULL,
	refers_to       TEXT,
	ts              TEXT NOT NULL,
	policy_hash     TEXT,
	content_hash    TEXT NOT NULL,
	prev_hash       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_agent ON decisions(agent_id, seq);

CREATE TABLE IF NOT EXISTS overrides (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	agent_id       TEXT NOT NULL,
	session_id     TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	command        TEXT NOT NULL,
	original       TEXT NOT NULL,
	directive      TEXT NOT NULL,
	acknowledgment TEXT NOT NULL,
	action_taken   TEXT NOT NULL,
	failure_reason TEXT,
	ts             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_overrides_agent ON overrides(agent_id, seq);
`

// timeLayout stores timestamps as RFC3339 with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// SQLite is a durable Store backed by a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// DefaultPath returns the default database location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "trustgate", "trustgate.db")
	}
	return filepath.Join(home, ".trustgate", "trustgate.db")
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateAgent(ctx context.Context, rec *model.TrustRecord, hist *model.TrustHistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM agents WHERE agent_id = ?`, rec.AgentID).Scan(&exists); err != nil {
		return fmt.Errorf("store: check agent: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateAgent
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agents (agent_id, hierarchy_level, score, tier, autonomy, supervision,
			on_probation, probation_started_at, last_activity_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AgentID, int(rec.HierarchyLevel), int(rec.Score), string(rec.Tier),
		string(rec.Autonomy), string(rec.Supervision),
		boolToInt(rec.OnProbation), timePtr(rec.ProbationStartedAt),
		rec.LastActivityAt.UTC().Format(timeLayout), rec.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("store: insert agent: %w", err)
	}

	if hist != nil {
		if err := insertHistory(ctx, tx, hist); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) GetAgent(ctx context.Context, agentID string) (*model.TrustRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, hierarchy_level, score, tier, autonomy, supervision,
			on_probation, probation_started_at, last_activity_at, created_at
		FROM agents WHERE agent_id = ?`, agentID)
	return scanAgent(row)
}

func (s *SQLite) ListAgents(ctx context.Context) ([]*model.TrustRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, hierarchy_level, score, tier, autonomy, supervision,
			on_probation, probation_started_at, last_activity_at, created_at
		FROM agents ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	defer rows.Close()

	var out []*model.TrustRecord
	for rows.Next() {
		rec, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) ApplyChange(ctx context.Context, rec *model.TrustRecord, prevScore model.TrustScore, hist *model.TrustHistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE agents SET score = ?, tier = ?, autonomy = ?, supervision = ?,
			on_probation = ?, probation_started_at = ?, last_activity_at = ?
		WHERE agent_id = ? AND score = ?`,
		int(rec.Score), string(rec.Tier), string(rec.Autonomy), string(rec.Supervision),
		boolToInt(rec.OnProbation), timePtr(rec.ProbationStartedAt),
		rec.LastActivityAt.UTC().Format(timeLayout),
		rec.AgentID, int(prevScore))
	if err != nil {
		return fmt.Errorf("store: update agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish not-found from a lost optimistic race.
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM agents WHERE agent_id = ?`, rec.AgentID).Scan(&exists); err != nil {
			return fmt.Errorf("store: check agent: %w", err)
		}
		if exists == 0 {
			return ErrAgentNotFound
		}
		return ErrScoreConflict
	}

	if err := insertHistory(ctx, tx, hist); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) UpdateProbation(ctx context.Context, agentID string, on bool, startedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET on_probation = ?, probation_started_at = ? WHERE agent_id = ?`,
		boolToInt(on), timePtr(startedAt), agentID)
	if err != nil {
		return fmt.Errorf("store: update probation: %w", err)
	}
	return requireRow(res)
}

func (s *SQLite) TouchActivity(ctx context.Context, agentID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET last_activity_at = ? WHERE agent_id = ?`,
		at.UTC().Format(timeLayout), agentID)
	if err != nil {
		return fmt.Errorf("store: touch activity: %w", err)
	}
	return requireRow(res)
}

func (s *SQLite) TrustHistory(ctx context.Context, agentID string, since time.Time) ([]*model.TrustHistoryEntry, error) {
	q := `SELECT agent_id, previous_score, new_score, delta, tier, reason, change_type, ts, metadata
		FROM trust_history WHERE agent_id = ?`
	args := []any{agentID}
	if !since.IsZero() {
		q += ` AND ts >= ?`
		args = append(args, since.UTC().Format(timeLayout))
	}
	q += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: trust history: %w", err)
	}
	defer rows.Close()

	var out []*model.TrustHistoryEntry
	for rows.Next() {
		var (
			h        model.TrustHistoryEntry
			ts, meta sql.NullString
		)
		var prev, next, delta int
		var tier, reason, changeType string
		if err := rows.Scan(&h.AgentID, &prev, &next, &delta, &tier, &reason, &changeType, &ts, &meta); err != nil {
			return nil, fmt.Errorf("store: scan history: %w", err)
		}
		h.PreviousScore = model.TrustScore(prev)
		h.NewScore = model.TrustScore(next)
		h.Delta = delta
		h.Tier = model.Tier(tier)
		h.Reason = reason
		h.ChangeType = model.ChangeType(changeType)
		if ts.Valid {
			if t, err := time.Parse(timeLayout, ts.String); err == nil {
				h.Timestamp = t
			}
		}
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &h.Metadata)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (s *SQLite) AppendDecision(ctx context.Context, entry *model.DecisionEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var tail sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT content_hash FROM decisions WHERE agent_id = ? ORDER BY seq DESC LIMIT 1`,
		entry.AgentID).Scan(&tail)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("store: read chain tail: %w", err)
	}
	if tail.Valid && entry.PrevHash != tail.String {
		return ErrChainConflict
	}

	inputs, _ := json.Marshal(entry.Inputs)
	alts, _ := json.Marshal(entry.Alternatives)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO decisions (id, agent_id, hierarchy_level, session_id, decision_type,
			rationale, inputs, alternatives, confidence, outcome, refers_to, ts,
			policy_hash, content_hash, prev_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AgentID, int(entry.HierarchyLevel), entry.SessionID,
		string(entry.DecisionType), entry.Rationale, string(inputs), string(alts),
		entry.Confidence, string(entry.Outcome), entry.RefersTo,
		entry.Timestamp.UTC().Format(timeLayout), entry.PolicyHash,
		entry.ContentHash, entry.PrevHash,
	); err != nil {
		return fmt.Errorf("store: insert decision: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) LastDecision(ctx context.Context, agentID string) (*model.DecisionEntry, error) {
	rows, err := s.db.QueryContext(ctx, decisionSelect+` WHERE agent_id = ? ORDER BY seq DESC LIMIT 1`, agentID)
	if err != nil {
		return nil, fmt.Errorf("store: last decision: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanDecision(rows)
}

func (s *SQLite) Decisions(ctx context.Context, agentID string, from, to int) ([]*model.DecisionEntry, error) {
	rows, err := s.db.QueryContext(ctx, decisionSelect+` WHERE agent_id = ? ORDER BY seq`, agentID)
	if err != nil {
		return nil, fmt.Errorf("store: decisions: %w", err)
	}
	defer rows.Close()

	var all []*model.DecisionEntry
	for rows.Next() {
		e, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if from < 0 {
		from = 0
	}
	if to <= 0 || to > len(all) {
		to = len(all)
	}
	if from >= to {
		return nil, nil
	}
	return all[from:to], nil
}

func (s *SQLite) AppendOverride(ctx context.Context, ev *model.OverrideEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (id, agent_id, session_id, user_id, command, original,
			directive, acknowledgment, action_taken, failure_reason, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.AgentID, ev.SessionID, ev.UserID, string(ev.Command),
		ev.OriginalRecommendation, ev.Directive, ev.Acknowledgment,
		string(ev.ActionTaken), ev.FailureReason, ev.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("store: insert override: %w", err)
	}
	return nil
}

func (s *SQLite) Overrides(ctx context.Context, agentID string) ([]*model.OverrideEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, session_id, user_id, command, original, directive,
			acknowledgment, action_taken, failure_reason, ts
		FROM overrides WHERE agent_id = ? ORDER BY seq`, agentID)
	if err != nil {
		return nil, fmt.Errorf("store: overrides: %w", err)
	}
	defer rows.Close()

	var out []*model.OverrideEvent
	for rows.Next() {
		var (
			ev              model.OverrideEvent
			cmd, action, ts string
			failure         sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.AgentID, &ev.SessionID, &ev.UserID, &cmd,
			&ev.OriginalRecommendation, &ev.Directive, &ev.Acknowledgment,
			&action, &failure, &ts); err != nil {
			return nil, fmt.Errorf("store: scan override: %w", err)
		}
		ev.Command = model.OverrideCommand(cmd)
		ev.ActionTaken = model.OverrideAction(action)
		if failure.Valid {
			ev.FailureReason = failure.String
		}
		if t, err := time.Parse(timeLayout, ts); err == nil {
			ev.Timestamp = t
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

const decisionSelect = `SELECT id, agent_id, hierarchy_level, session_id, decision_type,
	rationale, inputs, alternatives, confidence, outcome, refers_to, ts,
	policy_hash, content_hash, prev_hash FROM decisions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(r rowScanner) (*model.DecisionEntry, error) {
	var (
		e                  model.DecisionEntry
		level              int
		dtype, outcome, ts string
		inputs, alts       sql.NullString
		refersTo, policy   sql.NullString
	)
	if err := r.Scan(&e.ID, &e.AgentID, &level, &e.SessionID, &dtype,
		&e.Rationale, &inputs, &alts, &e.Confidence, &outcome, &refersTo, &ts,
		&policy, &e.ContentHash, &e.PrevHash); err != nil {
		return nil, fmt.Errorf("store: scan decision: %w", err)
	}
	e.HierarchyLevel = model.HierarchyLevel(level)
	e.DecisionType = model.DecisionType(dtype)
	e.Outcome = model.Outcome(outcome)
	if refersTo.Valid {
		e.RefersTo = refersTo.String
	}
	if policy.Valid {
		e.PolicyHash = policy.String
	}
	if inputs.Valid && inputs.String != "" && inputs.String != "null" {
		_ = json.Unmarshal([]byte(inputs.String), &e.Inputs)
	}
	if alts.Valid && alts.String != "" && alts.String != "null" {
		_ = json.Unmarshal([]byte(alts.String), &e.Alternatives)
	}
	if t, err := time.Parse(timeLayout, ts); err == nil {
		e.Timestamp = t
	}
	return &e, nil
}

func scanAgent(r rowScanner) (*model.TrustRecord, error) {
	var (
		rec                       model.TrustRecord
		level, score, onProbation int
		tier, autonomy, superv    string
		probStarted               sql.NullString
		lastActivity, created     string
	)
	err := r.Scan(&rec.AgentID, &level, &score, &tier, &autonomy, &superv,
		&onProbation, &probStarted, &lastActivity, &created)
	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan agent: %w", err)
	}
	rec.HierarchyLevel = model.HierarchyLevel(level)
	rec.Score = model.TrustScore(score)
	rec.Tier = model.Tier(tier)
	rec.Autonomy = model.AutonomyLevel(autonomy)
	rec.Supervision = model.SupervisionLevel(superv)
	rec.OnProbation = onProbation != 0
	if probStarted.Valid {
		if t, err := time.Parse(timeLayout, probStarted.String); err == nil {
			rec.ProbationStartedAt = &t
		}
	}
	if t, err := time.Parse(timeLayout, lastActivity); err == nil {
		rec.LastActivityAt = t
	}
	if t, err := time.Parse(timeLayout, created); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, hist *model.TrustHistoryEntry) error {
	var meta any
	if len(hist.Metadata) > 0 {
		b, _ := json.Marshal(hist.Metadata)
		meta = string(b)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trust_history (agent_id, previous_score, new_score, delta, tier, reason, change_type, ts, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hist.AgentID, int(hist.PreviousScore), int(hist.NewScore), hist.Delta,
		string(hist.Tier), hist.Reason, string(hist.ChangeType),
		hist.Timestamp.UTC().Format(timeLayout), meta,
	); err != nil {
		return fmt.Errorf("store: insert history: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
