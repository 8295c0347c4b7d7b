package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/auth"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/service"
	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// ListUsers returns the user directory.
// GET /api/chat/users
func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.service.ListUsers(c.Request().Context())
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// CreateConversation returns the conversation of a pair, creating it on first use.
// POST /api/chat/conversation
func (h *Handler) CreateConversation(c echo.Context) error {
	var req domain.CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	conv, err := h.service.CreateConversation(c.Request().Context(), auth.User(c).ID, req.User1, req.User2)
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// GetMessages returns a conversation's history in insertion order.
// GET /api/chat/messages/:conversation_id
func (h *Handler) GetMessages(c echo.Context) error {
	messages, err := h.service.GetMessages(c.Request().Context(), auth.User(c).ID, c.Param("conversation_id"))
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusOK, messages)
}

// SendMessage stores a message.
// POST /api/chat/message
func (h *Handler) SendMessage(c echo.Context) error {
	var req domain.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	msg, err := h.service.SendMessage(c.Request().Context(), auth.User(c).ID, service.SendMessageRequest{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Body:           req.Message,
		ClientID:       req.ClientID,
	})
	if err != nil {
		return chatError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}
