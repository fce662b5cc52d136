package push

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"MockMate/internal/domain"
)

// RecordStore persists a user's push history. The scheduler is the single
// writer for a given user; implementations only need to survive that.
type RecordStore interface {
	Append(ctx context.Context, rec domain.PushRecord) error
	LastPushAt(ctx context.Context, userID int64) (time.Time, bool, error)
	PushedSince(ctx context.Context, userID int64, questionID string, since time.Time) (bool, error)
	UpdateStatus(ctx context.Context, recordID string, status domain.PushStatus, at time.Time) error
	History(ctx context.Context, userID int64, limit int) ([]domain.PushRecord, error)
}

// ErrDuplicatePending reports an attempt to open a second pending record for
// the same (user, question) pair.
var ErrDuplicatePending = errors.New("pending push record already exists for question")

// ErrNotPending reports a status update against a record that already left
// the pending state. Transitions are forward-only.
var ErrNotPending = errors.New("push record is not pending")

// SQLiteRecords implements RecordStore on a local SQLite database.
type SQLiteRecords struct {
	db    *sqlx.DB
	limit int
}

var _ RecordStore = (*SQLiteRecords)(nil)

// NewSQLiteRecords opens (or creates) the record database at dbPath. A
// historyLimit of zero or less falls back to the default cap.
func NewSQLiteRecords(dbPath string, historyLimit int) (*SQLiteRecords, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open push records db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS push_records (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		pushed_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		answered_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_push_records_user ON push_records (user_id, pushed_at)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create push records schema: %w", err)
	}

	if historyLimit <= 0 {
		historyLimit = domain.PushHistoryLimit
	}

	return &SQLiteRecords{db: db, limit: historyLimit}, nil
}

// Close closes the underlying database.
func (s *SQLiteRecords) Close() error {
	return s.db.Close()
}

// Append writes a new record and evicts the oldest entries beyond the
// per-user history cap. At most one pending record may exist per
// (user, question) pair.
func (s *SQLiteRecords) Append(ctx context.Context, rec domain.PushRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var pending int
	err = tx.GetContext(ctx, &pending,
		`SELECT COUNT(*) FROM push_records WHERE user_id = ? AND question_id = ? AND status = ?`,
		rec.UserID, rec.QuestionID, domain.PushPending)
	if err != nil {
		return fmt.Errorf("check pending records: %w", err)
	}
	if pending > 0 {
		return ErrDuplicatePending
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO push_records (id, user_id, question_id, pushed_at, status, answered_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.QuestionID, rec.PushedAt.UTC(), rec.Status, rec.AnsweredAt)
	if err != nil {
		return fmt.Errorf("insert push record: %w", err)
	}

	// Oldest entries fall off once the cap is reached.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM push_records WHERE user_id = ? AND id NOT IN (
            SELECT id FROM push_records WHERE user_id = ?
            ORDER BY pushed_at DESC LIMIT ?)`,
		rec.UserID, rec.UserID, s.limit)
	if err != nil {
		return fmt.Errorf("evict old records: %w", err)
	}

	return tx.Commit()
}

// LastPushAt returns the most recent push timestamp for a user; ok is false
// when the user has no history.
func (s *SQLiteRecords) LastPushAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	var last time.Time
	err := s.db.GetContext(ctx, &last,
		`SELECT pushed_at FROM push_records WHERE user_id = ? ORDER BY pushed_at DESC LIMIT 1`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last push: %w", err)
	}
	return last, true, nil
}

// PushedSince reports whether the question was pushed to the user after the
// given instant, in any status. A record exactly at the boundary does not
// count, so a push at the interval boundary is allowed.
func (s *SQLiteRecords) PushedSince(ctx context.Context, userID int64, questionID string, since time.Time) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM push_records
         WHERE user_id = ? AND question_id = ? AND pushed_at > ?`,
		userID, questionID, since.UTC())
	if err != nil {
		return false, fmt.Errorf("query pushed since: %w", err)
	}
	return count > 0, nil
}

// UpdateStatus moves a pending record to answered or dismissed. Records that
// already left pending are never rewritten.
func (s *SQLiteRecords) UpdateStatus(ctx context.Context, recordID string, status domain.PushStatus, at time.Time) error {
	var answeredAt *time.Time
	if status == domain.PushAnswered {
		t := at.UTC()
		answeredAt = &t
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE push_records SET status = ?, answered_at = ? WHERE id = ? AND status = ?`,
		status, answeredAt, recordID, domain.PushPending)
	if err != nil {
		return fmt.Errorf("update record %s: %w", recordID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("record %s: %w", recordID, ErrNotPending)
	}
	return nil
}

// History returns a user's records, newest first.
func (s *SQLiteRecords) History(ctx context.Context, userID int64, limit int) ([]domain.PushRecord, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	rows, err := s.db.QueryxContext(ctx,
		`SELECT id, user_id, question_id, pushed_at, status, answered_at
         FROM push_records WHERE user_id = ?
         ORDER BY pushed_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []domain.PushRecord
	for rows.Next() {
		var rec domain.PushRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.QuestionID, &rec.PushedAt, &rec.Status, &rec.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan push record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
