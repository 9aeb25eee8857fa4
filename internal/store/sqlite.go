// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is the column format for timestamps. Fixed-width nanosecond
// precision keeps created_at ordering stable for messages written in quick
// succession: lexicographic TEXT comparison matches chronological order,
// which RFC3339Nano's trimmed trailing zeros would break.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys (needed for cascade deletes)
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name    TEXT NOT NULL,
			last_name     TEXT NOT NULL,
			phone         TEXT,
			role          TEXT NOT NULL DEFAULT 'manager',
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS conversations (
			id                     TEXT PRIMARY KEY,
			type                   TEXT NOT NULL DEFAULT 'direct',
			status                 TEXT NOT NULL DEFAULT 'active',
			created_by             TEXT NOT NULL,
			subject                TEXT,
			property_id            TEXT,
			property_name          TEXT,
			unit_id                TEXT,
			unit_number            TEXT,
			tenant_id              TEXT,
			maintenance_request_id TEXT,
			is_urgent              INTEGER NOT NULL DEFAULT 0,
			tags_json              TEXT,
			metadata_json          TEXT,
			created_at             TEXT NOT NULL,
			updated_at             TEXT NOT NULL,
			last_message_at        TEXT NOT NULL,

			CHECK (type IN ('direct', 'maintenance', 'lease', 'payment', 'announcement', 'system')),
			CHECK (status IN ('active', 'archived', 'resolved', 'pending'))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_last_message
			ON conversations(last_message_at DESC);
		CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status);

		CREATE TABLE IF NOT EXISTS conversation_participants (
			id                  TEXT PRIMARY KEY,
			conversation_id     TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id             TEXT,
			participant_type    TEXT NOT NULL,
			participant_name    TEXT NOT NULL,
			participant_email   TEXT,
			participant_phone   TEXT,
			can_reply           INTEGER NOT NULL DEFAULT 1,
			can_add_participants INTEGER NOT NULL DEFAULT 0,
			is_admin            INTEGER NOT NULL DEFAULT 0,
			joined_at           TEXT NOT NULL,
			left_at             TEXT,
			last_read_at        TEXT,
			is_active           INTEGER NOT NULL DEFAULT 1,
			email_notifications INTEGER NOT NULL DEFAULT 1,
			sms_notifications   INTEGER NOT NULL DEFAULT 0,
			push_notifications  INTEGER NOT NULL DEFAULT 1,

			CHECK (participant_type IN ('tenant', 'owner', 'vendor', 'manager', 'prospect'))
		);

		CREATE INDEX IF NOT EXISTS idx_participants_conversation
			ON conversation_participants(conversation_id);
		CREATE INDEX IF NOT EXISTS idx_participants_user
			ON conversation_participants(user_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_conversation_user
			ON conversation_participants(conversation_id, user_id)
			WHERE user_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT,
			sender_name     TEXT NOT NULL,
			sender_type     TEXT,
			content         TEXT NOT NULL,
			content_type    TEXT NOT NULL DEFAULT 'text',
			metadata_json   TEXT,
			is_read         INTEGER NOT NULL DEFAULT 0,
			is_edited       INTEGER NOT NULL DEFAULT 0,
			is_deleted      INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,
			edited_at       TEXT,
			read_at         TEXT,

			CHECK (content_type IN ('text', 'image', 'file', 'system'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages(conversation_id, is_read) WHERE is_deleted = 0;

		CREATE TABLE IF NOT EXISTS message_attachments (
			id            TEXT PRIMARY KEY,
			message_id    TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			file_name     TEXT NOT NULL,
			file_type     TEXT,
			file_size     INTEGER,
			file_url      TEXT NOT NULL,
			mime_type     TEXT,
			thumbnail_url TEXT,
			metadata_json TEXT,
			uploaded_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_attachments_message
			ON message_attachments(message_id);

		CREATE TABLE IF NOT EXISTS message_templates (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			category       TEXT,
			subject        TEXT,
			content        TEXT NOT NULL,
			variables_json TEXT,
			usage_count    INTEGER NOT NULL DEFAULT 0,
			last_used_at   TEXT,
			created_by     TEXT,
			is_public      INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_templates_usage
			ON message_templates(usage_count DESC);
		CREATE INDEX IF NOT EXISTS idx_templates_creator
			ON message_templates(created_by);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// formatNullableTime renders an optional timestamp, mapping nil to SQL NULL.
func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// parseNullableTime parses an optional stored timestamp.
func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// marshalJSON encodes a JSON column value, mapping empty values to NULL.
func marshalJSON(v any) (any, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json column: %w", err)
	}
	return string(data), nil
}

// unmarshalJSON decodes a JSON column into out, leaving out untouched for NULL.
func unmarshalJSON(ns sql.NullString, out any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), out); err != nil {
		return fmt.Errorf("decoding json column: %w", err)
	}
	return nil
}

// CreateUser inserts a new user. Returns ErrDuplicateUser if the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Role,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var phone sql.NullString
	var createdAt string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&phone,
		&user.Role,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	user.Phone = phone.String
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing user created_at: %w", err)
	}
	return &user, nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, phone, role, created_at
		FROM users WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by exact email match.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, phone, role, created_at
		FROM users WHERE email = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// CountUsers returns the total number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
