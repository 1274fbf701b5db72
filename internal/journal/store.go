package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"interviewroom/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		interviewId TEXT NOT NULL,
		startedAt REAL NOT NULL,
		completedAt REAL,
		totalQuestions INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		sessionId TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		sequenceNumber INTEGER NOT NULL,
		questionId TEXT NOT NULL,
		questionText TEXT NOT NULL,
		hint TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL,
		submittedAt REAL NOT NULL,
		submitError TEXT NOT NULL DEFAULT '',
		partial INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (sessionId, sequenceNumber)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_pending ON sessions(completedAt);
`

// Store is the client-side question history journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" opens a private
// in-memory journal.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginSession records a session start. Re-beginning a known session keeps
// its existing entries.
func (s *Store) BeginSession(ctx context.Context, record domain.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, interviewId, startedAt, totalQuestions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET totalQuestions = excluded.totalQuestions
	`, record.ID, record.InterviewID, unixFromTime(record.StartedAt), record.TotalQuestions)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// AppendEntry stores one history entry, replacing any entry with the same
// sequence number.
func (s *Store) AppendEntry(ctx context.Context, sessionID string, entry domain.HistoryEntry) error {
	partial := 0
	if entry.Partial {
		partial = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entries
			(sessionId, sequenceNumber, questionId, questionText, hint, transcript, submittedAt, submitError, partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, entry.Sequence, string(entry.Question.ID), entry.Question.Text, entry.Question.Hint,
		entry.Answer.Transcript, unixFromTime(entry.Answer.SubmittedAt), entry.SubmitError, partial)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// MarkCompleted records that the backend acknowledged the session.
func (s *Store) MarkCompleted(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET completedAt = ? WHERE id = ?`, unixFromTime(at), sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %q not found", sessionID)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.querySessions(ctx, `
		SELECT s.id, s.interviewId, s.startedAt, s.completedAt, s.totalQuestions, COUNT(e.sequenceNumber)
		FROM sessions s
		LEFT JOIN entries e ON e.sessionId = s.id
		GROUP BY s.id
		ORDER BY s.startedAt DESC
		LIMIT ?
	`, limit)
}

// Pending returns sessions whose completion was never acknowledged, oldest first.
func (s *Store) Pending(ctx context.Context) ([]domain.SessionRecord, error) {
	return s.querySessions(ctx, `
		SELECT s.id, s.interviewId, s.startedAt, s.completedAt, s.totalQuestions, COUNT(e.sequenceNumber)
		FROM sessions s
		LEFT JOIN entries e ON e.sessionId = s.id
		WHERE s.completedAt IS NULL
		GROUP BY s.id
		ORDER BY s.startedAt ASC
	`)
}

// Session returns one session, or nil if unknown.
func (s *Store) Session(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	records, err := s.querySessions(ctx, `
		SELECT s.id, s.interviewId, s.startedAt, s.completedAt, s.totalQuestions, COUNT(e.sequenceNumber)
		FROM sessions s
		LEFT JOIN entries e ON e.sessionId = s.id
		WHERE s.id = ?
		GROUP BY s.id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Entries returns a session's history in sequence order.
func (s *Store) Entries(ctx context.Context, sessionID string) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequenceNumber, questionId, questionText, hint, transcript, submittedAt, submitError, partial
		FROM entries
		WHERE sessionId = ?
		ORDER BY sequenceNumber ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var questionID string
		var submittedAt float64
		var partial int
		if err := rows.Scan(&e.Sequence, &questionID, &e.Question.Text, &e.Question.Hint,
			&e.Answer.Transcript, &submittedAt, &e.SubmitError, &partial); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Question.ID = domain.QuestionID(questionID)
		e.Answer.QuestionID = e.Question.ID
		e.Answer.SubmittedAt = timeFromUnix(submittedAt)
		e.Partial = partial != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]domain.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []domain.SessionRecord
	for rows.Next() {
		var r domain.SessionRecord
		var startedAt float64
		var completedAt sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.InterviewID, &startedAt, &completedAt, &r.TotalQuestions, &r.Entries); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.StartedAt = timeFromUnix(startedAt)
		if completedAt.Valid {
			t := timeFromUnix(completedAt.Float64)
			r.CompletedAt = &t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
