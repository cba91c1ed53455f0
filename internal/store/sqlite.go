package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avezina/curioloop/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db           *sql.DB
	experimentMu sync.Mutex // serializes experiment writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		current_experiment_id TEXT,
		total_experiments INTEGER DEFAULT 0,
		streak_days INTEGER DEFAULT 0,
		last_active INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS experiments (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		curiosity TEXT NOT NULL DEFAULT '',
		hypothesis TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		current_phase TEXT NOT NULL,
		start_date INTEGER NOT NULL,
		last_updated INTEGER NOT NULL,
		messages_json TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_experiments_updated ON experiments(user_id, last_updated);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, current_experiment_id,
		       total_experiments, streak_days, last_active, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var currentExperimentID sql.NullString
	var lastActive, createdAt, updatedAt int64

	err := row.Scan(
		&user.UserID, &user.Username, &currentExperimentID,
		&user.TotalExperiments, &user.StreakDays,
		&lastActive, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CurrentExperimentID = currentExperimentID.String
	user.LastActive = time.Unix(lastActive, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, current_experiment_id, total_experiments, streak_days, last_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_active = excluded.last_active,
		updated_at = excluded.updated_at`

	var currentExperimentID interface{}
	if user.CurrentExperimentID != "" {
		currentExperimentID = user.CurrentExperimentID
	}

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, currentExperimentID,
		user.TotalExperiments, user.StreakDays,
		user.LastActive.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastActive updates the last_active timestamp for a user.
func (s *SQLiteStore) UpdateLastActive(ctx context.Context, userID string, lastActive time.Time) error {
	query := `UPDATE users SET last_active = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastActive.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_active: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastActive affected 0 rows", "user_id", userID)
	}

	return nil
}

// storedMessage is the JSON representation of a message in the
// messages_json column. Timestamps round-trip at second precision.
type storedMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"ts"`
	Phase     string `json:"phase,omitempty"`
}

func encodeMessages(messages []domain.Message) (string, error) {
	stored := make([]storedMessage, len(messages))
	for i, m := range messages {
		stored[i] = storedMessage{
			ID:        m.ID,
			Content:   m.Content,
			Sender:    string(m.Sender),
			Timestamp: m.Timestamp.Unix(),
			Phase:     string(m.Phase),
		}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}
	return string(data), nil
}

func decodeMessages(data string) ([]domain.Message, error) {
	var stored []storedMessage
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	messages := make([]domain.Message, len(stored))
	for i, m := range stored {
		messages[i] = domain.Message{
			ID:        m.ID,
			Content:   m.Content,
			Sender:    domain.Sender(m.Sender),
			Timestamp: time.Unix(m.Timestamp, 0),
			Phase:     domain.Phase(m.Phase),
		}
	}
	return messages, nil
}

// GetExperiment retrieves one experiment.
func (s *SQLiteStore) GetExperiment(ctx context.Context, userID, id string) (*domain.Experiment, error) {
	query := `
		SELECT id, user_id, title, curiosity, hypothesis, status,
		       current_phase, start_date, last_updated, messages_json
		FROM experiments WHERE user_id = ? AND id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, id)
	exp, err := scanExperiment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan experiment row: %w", err)
	}
	return exp, nil
}

// ListExperiments retrieves all of a user's experiments, most recently
// updated first.
func (s *SQLiteStore) ListExperiments(ctx context.Context, userID string) ([]*domain.Experiment, error) {
	query := `
		SELECT id, user_id, title, curiosity, hypothesis, status,
		       current_phase, start_date, last_updated, messages_json
		FROM experiments WHERE user_id = ? ORDER BY last_updated DESC, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close experiment rows", "error", closeErr)
		}
	}()

	var experiments []*domain.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan experiment row: %w", err)
		}
		experiments = append(experiments, exp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}

	return experiments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*domain.Experiment, error) {
	var exp domain.Experiment
	var status, phase, messagesJSON string
	var startDate, lastUpdated int64

	err := row.Scan(
		&exp.ID, &exp.UserID, &exp.Title, &exp.Curiosity, &exp.Hypothesis,
		&status, &phase, &startDate, &lastUpdated, &messagesJSON,
	)
	if err != nil {
		return nil, err
	}

	exp.Status = domain.Status(status)
	exp.CurrentPhase = domain.Phase(phase)
	exp.StartDate = time.Unix(startDate, 0)
	exp.LastUpdated = time.Unix(lastUpdated, 0)

	messages, err := decodeMessages(messagesJSON)
	if err != nil {
		return nil, err
	}
	exp.Messages = messages

	return &exp, nil
}

// SaveExperiment upserts an experiment record and points the user's
// current-experiment pointer at it.
func (s *SQLiteStore) SaveExperiment(ctx context.Context, exp *domain.Experiment) error {
	s.experimentMu.Lock()
	defer s.experimentMu.Unlock()

	messagesJSON, err := encodeMessages(exp.Messages)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save experiment: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
	INSERT INTO experiments (id, user_id, title, curiosity, hypothesis, status, current_phase, start_date, last_updated, messages_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, id) DO UPDATE SET
		title = excluded.title,
		curiosity = excluded.curiosity,
		hypothesis = excluded.hypothesis,
		status = excluded.status,
		current_phase = excluded.current_phase,
		last_updated = excluded.last_updated,
		messages_json = excluded.messages_json`

	_, err = tx.ExecContext(ctx, query,
		exp.ID, exp.UserID, exp.Title, exp.Curiosity, exp.Hypothesis,
		string(exp.Status), string(exp.CurrentPhase),
		exp.StartDate.Unix(), exp.LastUpdated.Unix(), messagesJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert experiment: %w", err)
	}

	pointerQuery := `
	UPDATE users SET
		current_experiment_id = ?,
		total_experiments = (SELECT COUNT(*) FROM experiments WHERE user_id = ?),
		updated_at = ?
	WHERE user_id = ?`
	if _, err := tx.ExecContext(ctx, pointerQuery, exp.ID, exp.UserID, time.Now().Unix(), exp.UserID); err != nil {
		return fmt.Errorf("update current experiment pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save experiment: %w", err)
	}
	return nil
}

// SwitchExperiment points the user's current-experiment pointer at an
// existing experiment. No-op if the experiment does not exist.
func (s *SQLiteStore) SwitchExperiment(ctx context.Context, userID, id string) error {
	s.experimentMu.Lock()
	defer s.experimentMu.Unlock()

	query := `
	UPDATE users SET current_experiment_id = ?, updated_at = ?
	WHERE user_id = ?
	  AND EXISTS (SELECT 1 FROM experiments WHERE user_id = ? AND id = ?)`

	result, err := s.db.ExecContext(ctx, query, id, time.Now().Unix(), userID, userID, id)
	if err != nil {
		return fmt.Errorf("switch experiment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Debug("SwitchExperiment matched no experiment", "user_id", userID, "experiment_id", id)
	}

	return nil
}

// CloseCurrentExperiment marks the user's current experiment paused and
// clears the pointer. Data is kept.
func (s *SQLiteStore) CloseCurrentExperiment(ctx context.Context, userID string) error {
	s.experimentMu.Lock()
	defer s.experimentMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin close experiment: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().Unix()

	pauseQuery := `
	UPDATE experiments SET status = ?, last_updated = ?
	WHERE user_id = ?
	  AND id = (SELECT current_experiment_id FROM users WHERE user_id = ?)`
	if _, err := tx.ExecContext(ctx, pauseQuery, string(domain.StatusPaused), now, userID, userID); err != nil {
		return fmt.Errorf("pause current experiment: %w", err)
	}

	clearQuery := `UPDATE users SET current_experiment_id = NULL, updated_at = ? WHERE user_id = ?`
	if _, err := tx.ExecContext(ctx, clearQuery, now, userID); err != nil {
		return fmt.Errorf("clear current experiment pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit close experiment: %w", err)
	}
	return nil
}
