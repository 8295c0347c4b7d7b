// Package repository persists users, sessions, conversations and messages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")
)

// Account is a user together with its credentials.
type Account struct {
	domain.User
	PasswordHash []byte
	CreatedAt    time.Time
}

// Token is an issued bearer token.
type Token struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Store defines the persistence operations of the chat service.
type Store interface {
	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	// Token operations
	CreateToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, token string) (*Token, error)
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// Conversation operations
	GetOrCreateConversation(ctx context.Context, id, user1, user2 string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) (*domain.Message, error)
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	Close() error
}
