// Package service implements the chat backend's business operations on top of the repository
// and the access policy.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/metrics"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/policy"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/repository"
	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

var (
	ErrInvalid      = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("already exists")
	ErrNotFound     = errors.New("not found")
)

// DemoPassword is the password of the seeded demo accounts.
const DemoPassword = "password"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Service struct {
	store    repository.Store
	policy   *policy.Engine
	tokenTTL time.Duration
	metrics  *metrics.Metrics

	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics counts policy denials on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store repository.Store, policyEngine *policy.Engine, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		store:    store,
		policy:   policyEngine,
		tokenTTL: tokenTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SeedDemoUsers creates the sample directory accounts unless they already exist.
func (s *Service) SeedDemoUsers(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	base := s.now().UTC()
	for i, u := range domain.DemoUsers() {
		account := &repository.Account{User: u, PasswordHash: hash, CreatedAt: base.Add(time.Duration(i) * time.Millisecond)}
		err := s.store.CreateAccount(ctx, account)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", u.Email, err)
		}
		glog.Infof("seeded demo user %s (%s)", u.Name, u.Email)
	}
	return nil
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, name, email, password string) (*domain.Profile, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || !emailPattern.MatchString(email) || password == "" {
		return nil, fmt.Errorf("%w: name, valid email and password are required", ErrInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	account := &repository.Account{
		User:         domain.User{ID: s.newID(), Name: name, Email: email},
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return profileOf(account.User), nil
}

// Login checks the credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *domain.Profile, error) {
	account, err := s.store.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to get account: %w", err)
	}
	if bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) != nil {
		return "", nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	token := &repository.Token{
		Token:     s.newID(),
		UserID:    account.ID,
		ExpiresAt: s.now().Add(s.tokenTTL),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return "", nil, fmt.Errorf("failed to create token: %w", err)
	}
	return token.Token, profileOf(account.User), nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	t, err := s.store.GetToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if !s.now().Before(t.ExpiresAt) {
		return nil, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	user, err := s.store.GetUser(ctx, t.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	return user, err
}

// PurgeExpiredTokens drops tokens that can no longer authenticate.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredTokens(ctx, s.now())
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateConversation returns the conversation of the pair, creating it on first use.
func (s *Service) CreateConversation(ctx context.Context, callerID, user1, user2 string) (*domain.Conversation, error) {
	if user1 == "" || user2 == "" {
		return nil, fmt.Errorf("%w: user1 and user2 are required", ErrInvalid)
	}
	if err := s.authorize(ctx, policy.Input{
		Action:       policy.ActionCreateConversation,
		UserID:       callerID,
		Participants: []string{user1, user2},
	}); err != nil {
		return nil, err
	}
	for _, id := range []string{user1, user2} {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
			}
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
	}

	conv, err := s.store.GetOrCreateConversation(ctx, s.newID(), user1, user2)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// Conversation returns a conversation the caller may perform action on.
func (s *Service) Conversation(ctx context.Context, callerID, conversationID, action string) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if err := s.authorize(ctx, policy.Input{
		Action:       action,
		UserID:       callerID,
		Participants: conv.Participants,
	}); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Service) GetMessages(ctx context.Context, callerID, conversationID string) ([]domain.Message, error) {
	if _, err := s.Conversation(ctx, callerID, conversationID, policy.ActionReadConversation); err != nil {
		return nil, err
	}
	messages, err := s.store.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// SendMessageRequest is a message submitted by a participant.
type SendMessageRequest struct {
	ConversationID string
	SenderID       string
	Body           string
	ClientID       string
}

// SendMessage stores a message. Resubmitting a client id returns the stored message.
func (s *Service) SendMessage(ctx context.Context, callerID string, req SendMessageRequest) (*domain.Message, error) {
	if strings.TrimSpace(req.Body) == "" || req.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversationId and message are required", ErrInvalid)
	}
	if req.SenderID == "" {
		req.SenderID = callerID
	}

	conv, err := s.store.GetConversation(ctx, req.ConversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, req.ConversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if err := s.authorize(ctx, policy.Input{
		Action:       policy.ActionSendMessage,
		UserID:       callerID,
		Participants: conv.Participants,
		SenderID:     req.SenderID,
	}); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		Body:           req.Body,
		Timestamp:      domain.FormatTimestamp(s.now()),
		ClientID:       req.ClientID,
	}
	stored, err := s.store.CreateMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return stored, nil
}

func (s *Service) authorize(ctx context.Context, input policy.Input) error {
	allowed, err := s.policy.Allow(ctx, input)
	if err != nil {
		return err
	}
	if !allowed {
		glog.V(1).Infof("policy denied %s for user %s", input.Action, input.UserID)
		if s.metrics != nil {
			s.metrics.PolicyDenials.WithLabelValues(input.Action).Inc()
		}
		return fmt.Errorf("%w: %s", ErrForbidden, input.Action)
	}
	return nil
}

func profileOf(u domain.User) *domain.Profile {
	return &domain.Profile{ID: u.ID, Name: u.Name, Email: u.Email}
}
