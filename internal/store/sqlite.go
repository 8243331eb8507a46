package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notifeed/internal/model"
)

// ErrStepNotFound is returned when a journal id does not exist.
var ErrStepNotFound = errors.New("journal step not found")

// SQLiteJournal implements the Journal interface using a local SQLite
// database.
type SQLiteJournal struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteJournal opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	j := &SQLiteJournal{db: db, now: time.Now}
	if err := j.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return j, nil
}

// SetClock replaces the clock used for timestamps.
func (j *SQLiteJournal) SetClock(now func() time.Time) {
	j.now = now
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (j *SQLiteJournal) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := j.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = j.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := j.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Begin inserts a pending step with a fresh UUID.
func (j *SQLiteJournal) Begin(ctx context.Context, step model.Step) (string, error) {
	ids := step.IDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshaling step ids: %w", err)
	}

	id := uuid.New().String()
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO journal_steps (id, op, source, ids, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(step.Op), string(step.Source), string(idsJSON),
		string(model.StepPending), j.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting journal step: %w", err)
	}

	return id, nil
}

// Finish settles a pending step as succeeded or failed.
func (j *SQLiteJournal) Finish(ctx context.Context, id string, stepErr error) error {
	status := model.StepSucceeded
	msg := ""
	if stepErr != nil {
		status = model.StepFailed
		msg = stepErr.Error()
	}

	res, err := j.db.ExecContext(ctx, `
		UPDATE journal_steps SET status = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(status), msg, j.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing journal step %s: %w", id, err)
	}
	return requireRow(res, id)
}

// ListFailed returns failed steps oldest first.
func (j *SQLiteJournal) ListFailed(ctx context.Context) ([]model.JournalEntry, error) {
	rows, err := j.db.QueryxContext(ctx, `
		SELECT * FROM journal_steps WHERE status = ? ORDER BY created_at, id`,
		string(model.StepFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("querying failed steps: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// MarkRetried flags a failed step as retried.
func (j *SQLiteJournal) MarkRetried(ctx context.Context, id string) error {
	res, err := j.db.ExecContext(ctx,
		"UPDATE journal_steps SET status = ? WHERE id = ? AND status = ?",
		string(model.StepRetried), id, string(model.StepFailed),
	)
	if err != nil {
		return fmt.Errorf("marking step %s retried: %w", id, err)
	}
	return requireRow(res, id)
}

// Get returns a single step by id.
func (j *SQLiteJournal) Get(ctx context.Context, id string) (*model.JournalEntry, error) {
	rows, err := j.db.QueryxContext(ctx, "SELECT * FROM journal_steps WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("getting step %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting step %s: %w", id, err)
		}
		return nil, fmt.Errorf("getting step %s: %w", id, ErrStepNotFound)
	}
	e, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Prune deletes succeeded and retried steps created before cutoff.
func (j *SQLiteJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM journal_steps
		WHERE status IN (?, ?) AND created_at < ?`,
		string(model.StepSucceeded), string(model.StepRetried), cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return n, nil
}

// journalRow is the column layout of journal_steps.
type journalRow struct {
	ID         string       `db:"id"`
	Op         string       `db:"op"`
	Source     string       `db:"source"`
	IDs        string       `db:"ids"`
	Status     string       `db:"status"`
	Error      string       `db:"error"`
	CreatedAt  time.Time    `db:"created_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

func scanEntry(rows *sqlx.Rows) (model.JournalEntry, error) {
	var r journalRow
	if err := rows.StructScan(&r); err != nil {
		return model.JournalEntry{}, fmt.Errorf("scanning journal step: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(r.IDs), &ids); err != nil {
		return model.JournalEntry{}, fmt.Errorf("decoding ids of step %s: %w", r.ID, err)
	}

	e := model.JournalEntry{
		ID: r.ID,
		Step: model.Step{
			Op:     model.StepOp(r.Op),
			Source: model.Source(r.Source),
			IDs:    ids,
		},
		Status:    model.StepStatus(r.Status),
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		e.FinishedAt = &t
	}
	return e, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking step %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("step %s: %w", id, ErrStepNotFound)
	}
	return nil
}
