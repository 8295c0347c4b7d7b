package domain

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the envelope returned by the auth service.
type AuthResponse struct {
	Status  int       `json:"status"`
	Message string    `json:"message"`
	Data    *AuthData `json:"data,omitempty"`
}

// AuthData carries the issued token and the user profile.
type AuthData struct {
	Token string   `json:"token,omitempty"`
	User  *Profile `json:"user,omitempty"`
}

// CreateConversationRequest is the body of POST /api/chat/conversation.
type CreateConversationRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

// SendMessageRequest is the body of POST /api/chat/message.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Message        string `json:"message"`
	ClientID       string `json:"clientId,omitempty"`
}

var demoUsers = []User{
	{ID: "1", Name: "Sarah Wilson", Email: "sarah@example.com"},
	{ID: "2", Name: "John Doe", Email: "john@example.com"},
	{ID: "3", Name: "Alex Chen", Email: "alex@example.com"},
	{ID: "4", Name: "Emma Davis", Email: "emma@example.com"},
	{ID: "5", Name: "Mike Johnson", Email: "mike@example.com"},
}

// DemoUsers returns the five sample users. Clients fall back to them offline and the
// backend can seed them.
func DemoUsers() []User {
	return append([]User(nil), demoUsers...)
}
