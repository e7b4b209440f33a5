// Package archive keeps a write-only record of completed profiles and exchanged turns.
// Nothing in the bot reads it back; sessions stay in memory.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/petbot/bot/session"
	"github.com/m3rciful/petbot/core/database"
	"github.com/m3rciful/petbot/core/logger"
)

func init() {
	// modernc registers "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(database.DriverSQLite, sqlx.QUESTION)
}

const writeTimeout = 5 * time.Second

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pet_profiles (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     INTEGER NOT NULL,
    profile     TEXT    NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS pet_profiles_user_idx ON pet_profiles (user_id, recorded_at);
CREATE TABLE IF NOT EXISTS transcript_turns (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     INTEGER NOT NULL,
    exchange_id TEXT    NOT NULL,
    seq         INTEGER NOT NULL,
    role        TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS transcript_turns_user_idx ON transcript_turns (user_id, recorded_at);
`

// Store writes archive rows through sqlx. A nil *Store accepts and drops every record.
type Store struct {
	db     *sqlx.DB
	driver string
}

type profileRow struct {
	UserID     int64     `db:"user_id"`
	Profile    string    `db:"profile"`
	RecordedAt time.Time `db:"recorded_at"`
}

type turnRow struct {
	UserID     int64     `db:"user_id"`
	ExchangeID string    `db:"exchange_id"`
	Seq        int       `db:"seq"`
	Role       string    `db:"role"`
	Content    string    `db:"content"`
	RecordedAt time.Time `db:"recorded_at"`
}

// Attach wraps an open connection. A nil db yields a nil (disabled) store.
// PostgreSQL gets its schema from the embedded migrations; SQLite gets it here.
func Attach(db *sqlx.DB, driver string) (*Store, error) {
	if db == nil {
		return nil, nil
	}
	switch driver {
	case database.DriverPostgres:
	case database.DriverSQLite:
		if _, err := db.Exec(sqliteSchema); err != nil {
			return nil, fmt.Errorf("archive schema: %w", err)
		}
	default:
		return nil, fmt.Errorf("archive: unsupported driver %q", driver)
	}
	return &Store{db: db, driver: driver}, nil
}

// Driver reports the backend name.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// RecordProfile stores a snapshot of a completed or edited profile.
func (s *Store) RecordProfile(ctx context.Context, userID int64, profile map[string]string, at time.Time) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO pet_profiles (user_id, profile, recorded_at) VALUES (:user_id, :profile, :recorded_at)`,
		profileRow{UserID: userID, Profile: string(raw), RecordedAt: at.UTC()},
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	logger.Debug(ctx, logger.ComponentArchive, "archive.profile",
		slog.Int64("user_id", userID),
		slog.String("status", "ok"),
	)
	return nil
}

// RecordTurns stores the turns of one exchange in a single transaction.
func (s *Store) RecordTurns(ctx context.Context, userID int64, exchangeID string, turns []session.Turn, at time.Time) error {
	if s == nil || len(turns) == 0 {
		return nil
	}
	rows := make([]turnRow, 0, len(turns))
	for i, t := range turns {
		raw, err := json.Marshal(t.WithoutLinks().Content)
		if err != nil {
			return fmt.Errorf("encode turn %d: %w", i, err)
		}
		rows = append(rows, turnRow{
			UserID:     userID,
			ExchangeID: exchangeID,
			Seq:        i,
			Role:       string(t.Role),
			Content:    string(raw),
			RecordedAt: at.UTC(),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO transcript_turns (user_id, exchange_id, seq, role, content, recorded_at)
VALUES (:user_id, :exchange_id, :seq, :role, :content, :recorded_at)`
	for _, r := range rows {
		if _, err := tx.NamedExecContext(ctx, q, r); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Debug(ctx, logger.ComponentArchive, "archive.turns",
		slog.Int64("user_id", userID),
		slog.String("exchange_id", exchangeID),
		slog.Int("history_len", len(rows)),
		slog.String("status", "ok"),
	)
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
