package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tokens (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_expires ON tokens(expires_at)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			user_a TEXT NOT NULL,
			user_b TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_a, user_b)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			body TEXT NOT NULL,
			client_id TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_client ON messages(conversation_id, client_id) WHERE client_id IS NOT NULL`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// CreateAccount inserts a new account. ErrDuplicate is returned for a taken id or email.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Name, account.Email, account.PasswordHash, account.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetAccountByEmail retrieves an account by email.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, email FROM users WHERE user_id = ?`, userID).
		Scan(&u.ID, &u.Name, &u.Email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every user, oldest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, name, email FROM users ORDER BY created_at ASC, user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateToken stores an issued token.
func (s *SQLiteStore) CreateToken(ctx context.Context, token *Token) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token.Token, token.UserID, token.ExpiresAt.UTC())
	return err
}

// GetToken retrieves a token.
func (s *SQLiteStore) GetToken(ctx context.Context, token string) (*Token, error) {
	var t Token
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM tokens WHERE token = ?`, token).
		Scan(&t.Token, &t.UserID, &t.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteExpiredTokens removes tokens that expired before now.
func (s *SQLiteStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetOrCreateConversation returns the conversation of the pair, creating it with id when
// the pair has none yet. The pair is unordered.
func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, id, user1, user2 string) (*domain.Conversation, error) {
	a, b := user1, user2
	if b < a {
		a, b = b, a
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (conversation_id, user_a, user_b, created_at) VALUES (?, ?, ?, ?)`,
		id, a, b, time.Now().UTC()); err != nil {
		return nil, err
	}

	conv := &domain.Conversation{}
	var ua, ub string
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, user_a, user_b FROM conversations WHERE user_a = ? AND user_b = ?`, a, b).
		Scan(&conv.ID, &ua, &ub)
	if err != nil {
		return nil, err
	}
	conv.Participants = []string{ua, ub}
	return conv, nil
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var ua, ub string
	conv := &domain.Conversation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, user_a, user_b FROM conversations WHERE conversation_id = ?`, conversationID).
		Scan(&conv.ID, &ua, &ub)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.Participants = []string{ua, ub}
	return conv, nil
}

// CreateMessage appends a message to its conversation. A message repeating a client id already
// stored in the conversation is not inserted again; the stored message is returned instead.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, message.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", message.Timestamp, err)
	}
	var clientID sql.NullString
	if message.ClientID != "" {
		clientID = sql.NullString{String: message.ClientID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, conversation_id, sender_id, body, client_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		message.ID, message.ConversationID, message.SenderID, message.Body, clientID, createdAt.UTC())
	if isUniqueViolation(err) && clientID.Valid {
		return s.getMessageByClientID(ctx, message.ConversationID, message.ClientID)
	}
	if err != nil {
		return nil, err
	}
	stored := *message
	return &stored, nil
}

func (s *SQLiteStore) getMessageByClientID(ctx context.Context, conversationID, clientID string) (*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, selectMessages+` WHERE conversation_id = ? AND client_id = ?`, conversationID, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrNotFound
	}
	return &messages[0], nil
}

// GetMessages returns the messages of a conversation in insertion order.
func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, selectMessages+` WHERE conversation_id = ? ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

const selectMessages = `SELECT message_id, conversation_id, sender_id, body, client_id, created_at FROM messages`

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var clientID sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &clientID, &createdAt); err != nil {
			return nil, err
		}
		msg.ClientID = clientID.String
		msg.Timestamp = domain.FormatTimestamp(createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
