package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/webdc/firstblood/internal/models"
	"github.com/webdc/firstblood/pkg/logx"
)

// schemaSQL is embedded so the service can self-bootstrap its database file.
//
//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever the events table shape changes.
// Version 1: username + integer event/challenge ids.
const schemaVersion = 1

// ErrDuplicate is returned when a first blood already exists for the
// (event_id, challenge_id) pair.
var ErrDuplicate = errors.New("first blood already exists for this event and challenge")

// Filter narrows List and Claim results. Nil fields impose no constraint;
// set fields are ANDed together. Start and End are inclusive bounds on date.
type Filter struct {
	EventID     *int64
	ChallengeID *int64
	Start       *time.Time
	End         *time.Time
}

// SQLiteStore is the durable persistence layer for first-blood records.
//
// It keeps a single writer connection so the Claim select-and-mark
// transaction cannot interleave with a concurrent claimer.
type SQLiteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open creates (or opens) the database file, applies pragmas and schema,
// and fails fast when the file is unusable.
func Open(path string, log logx.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; this also serializes claims.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if log.IsZero() {
		log = logx.Nop()
	}
	s := &SQLiteStore{db: db, log: log}

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// Ping is used by the readiness endpoint to validate the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close shuts down the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert persists a record and returns it with the store-assigned id.
// Uniqueness of (event_id, challenge_id) is enforced by the table
// constraint, so concurrent creators cannot race past a check-then-insert
// gap; violations surface as ErrDuplicate.
func (s *SQLiteStore) Insert(ctx context.Context, rec models.FirstBlood) (models.FirstBlood, error) {
	if rec.Date.IsZero() {
		rec.Date = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (date, event_id, challenge_id, challenge_name, challenge_category, challenge_difficulty, username, was_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		rec.Date.UTC().Unix(), rec.EventID, rec.ChallengeID,
		rec.ChallengeName, rec.ChallengeCategory, rec.ChallengeDifficulty,
		rec.Username,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.FirstBlood{}, ErrDuplicate
		}
		return models.FirstBlood{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.FirstBlood{}, err
	}
	rec.ID = id
	rec.Date = rec.Date.UTC().Truncate(time.Second)
	rec.WasSent = false
	return rec, nil
}

// List returns records matching the filter, ordered by date descending.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]models.FirstBlood, error) {
	where, args := f.clauses(nil)
	rows, err := s.db.QueryContext(ctx, selectSQL(where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Claim returns records matching the filter that had was_sent=false and
// marks them sent, in one transaction. A record is handed to at most one
// successful Claim call.
func (s *SQLiteStore) Claim(ctx context.Context, f Filter) ([]models.FirstBlood, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	where, args := f.clauses([]string{"was_sent = 0"})
	rows, err := tx.QueryContext(ctx, selectSQL(where), args...)
	if err != nil {
		return nil, err
	}
	recs, err := scanRecords(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]any, 0, len(recs))
	ph := make([]string, 0, len(recs))
	for i := range recs {
		ids = append(ids, recs[i].ID)
		ph = append(ph, "?")
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE events SET was_sent = 1 WHERE id IN ("+strings.Join(ph, ", ")+")", ids...)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].WasSent = true
	}
	s.log.Debug("claimed first bloods", logx.Int("count", len(recs)))
	return recs, nil
}

// MarkSent sets was_sent on a single record. Marking an already-sent record
// is a no-op.
func (s *SQLiteStore) MarkSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE events SET was_sent = 1 WHERE id = ?", id)
	return err
}

func selectSQL(where []string) string {
	q := `SELECT id, date, event_id, challenge_id, challenge_name, challenge_category, challenge_difficulty, username, was_sent FROM events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY date DESC, id DESC"
}

func (f Filter) clauses(where []string) ([]string, []any) {
	var args []any
	if f.EventID != nil {
		where = append(where, "event_id = ?")
		args = append(args, *f.EventID)
	}
	if f.ChallengeID != nil {
		where = append(where, "challenge_id = ?")
		args = append(args, *f.ChallengeID)
	}
	if f.Start != nil {
		where = append(where, "date >= ?")
		args = append(args, f.Start.UTC().Unix())
	}
	if f.End != nil {
		where = append(where, "date <= ?")
		args = append(args, f.End.UTC().Unix())
	}
	return where, args
}

func scanRecords(rows *sql.Rows) ([]models.FirstBlood, error) {
	out := []models.FirstBlood{}
	for rows.Next() {
		var rec models.FirstBlood
		var epoch int64
		var sent int
		if err := rows.Scan(&rec.ID, &epoch, &rec.EventID, &rec.ChallengeID,
			&rec.ChallengeName, &rec.ChallengeCategory, &rec.ChallengeDifficulty,
			&rec.Username, &sent); err != nil {
			return nil, err
		}
		rec.Date = time.Unix(epoch, 0).UTC()
		rec.WasSent = sent != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
