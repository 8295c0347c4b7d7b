package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

func TestListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chat/users", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"_id":"2","name":"John Doe","email":"john@example.com"}]`))
	}))
	defer srv.Close()

	users, err := NewClient(srv.URL+"/", WithToken("tok")).ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.User{{ID: "2", Name: "John Doe", Email: "john@example.com"}}, users)
}

func TestCreateConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/conversation", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req domain.CreateConversationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, domain.CreateConversationRequest{User1: "1", User2: "2"}, req)

		w.Write([]byte(`{"_id":"c12","participants":["1","2"]}`))
	}))
	defer srv.Close()

	conv, err := NewClient(srv.URL).CreateConversation(context.Background(), "1", "2")
	require.NoError(t, err)
	assert.Equal(t, "c12", conv.ID)
	assert.Equal(t, []string{"1", "2"}, conv.Participants)
}

func TestCreateConversationEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateConversation(context.Background(), "1", "2")
	assert.Error(t, err)
}

func TestGetMessagesEscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/messages/a%2Fb", r.URL.EscapedPath())
		w.Write([]byte(`[{"_id":"m1","senderId":"1","message":"hi","timestamp":"2024-01-01T00:00:00.000Z"}]`))
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL).GetMessages(context.Background(), "a/b")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Body)
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "c1", req.ConversationID)
		assert.Equal(t, "k1", req.ClientID)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Message{
			ID:        "m9",
			SenderID:  req.SenderID,
			Body:      req.Message,
			Timestamp: "2024-01-01T00:00:00.000Z",
			ClientID:  req.ClientID,
		})
	}))
	defer srv.Close()

	msg, err := NewClient(srv.URL).SendMessage(context.Background(), &domain.SendMessageRequest{
		ConversationID: "c1", SenderID: "1", Message: "hello", ClientID: "k1",
	})
	require.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, "k1", msg.ClientID)
}

func TestNon2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"not a participant"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetMessages(context.Background(), "c1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "not a participant", apiErr.Message)
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).ListUsers(context.Background())
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		var req domain.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":401,"message":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"status":200,"message":"ok","data":{"token":"tok","user":{"id":"1","name":"Sarah Wilson","email":"sarah@example.com"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	data, err := c.Login(context.Background(), &domain.LoginRequest{Email: "sarah@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", data.Token)
	assert.Equal(t, "1", data.User.ID)

	_, err = c.Login(context.Background(), &domain.LoginRequest{Email: "sarah@example.com", Password: "nope"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestLoginWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"message":"ok","data":{}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Login(context.Background(), &domain.LoginRequest{Email: "a@b.co", Password: "x"})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSignup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/signup", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":201,"message":"Account created"}`))
	}))
	defer srv.Close()

	msg, err := NewClient(srv.URL).Signup(context.Background(), &domain.SignupRequest{Name: "A", Email: "a@b.co", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Account created", msg)
}
