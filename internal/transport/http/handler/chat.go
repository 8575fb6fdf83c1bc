package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"thinkr-backend/internal/app"
	"thinkr-backend/internal/model"
	"thinkr-backend/internal/platform/logger"
	"thinkr-backend/internal/transport/http/response"
)

type ChatService interface {
	CreateSession(ctx context.Context, input app.CreateSessionInput) (*model.ChatSession, error)
	GetSession(ctx context.Context, userID uint, sessionID string) (*model.ChatSession, error)
	ListSessions(ctx context.Context, userID uint, documentID *uint) ([]model.ChatSession, error)
	SendMessage(ctx context.Context, input app.SendMessageInput) (string, error)
	StreamMessage(ctx context.Context, input app.SendMessageInput, onChunk func(string) error) (string, error)
	DeleteSession(ctx context.Context, userID uint, sessionID string) error
}

type ChatHandler struct {
	chatService ChatService
	log         *logger.Logger
}

type CreateSessionRequest struct {
	DocumentID *uint                  `json:"documentId"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

func NewChatHandler(chatService ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	// The body is optional; an empty one starts a session over all documents.
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	session, err := h.chatService.CreateSession(c.Request.Context(), app.CreateSessionInput{
		UserID:     userID,
		DocumentID: req.DocumentID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeError(c, h.log, err, "create chat session failed")
		return
	}
	response.OK(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var documentID *uint
	if raw := strings.TrimSpace(c.Query("documentId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			response.Error(c, http.StatusBadRequest, "invalid documentId")
			return
		}
		docID := uint(id)
		documentID = &docID
	}

	sessions, err := h.chatService.ListSessions(c.Request.Context(), userID, documentID)
	if err != nil {
		writeError(c, h.log, err, "list chat sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	session, err := h.chatService.GetSession(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		writeError(c, h.log, err, "get chat session failed")
		return
	}
	response.OK(c, session)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), userID, c.Param("sessionId")); err != nil {
		writeError(c, h.log, err, "delete chat session failed")
		return
	}
	response.Message(c, http.StatusOK, "chat session deleted")
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	reply, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:    userID,
		SessionID: c.Param("sessionId"),
		Content:   req.Message,
	})
	if err != nil {
		writeError(c, h.log, err, "send message failed")
		return
	}
	response.OK(c, gin.H{"response": reply})
}

// StreamMessage replies over Server-Sent Events. Errors raised before the
// first chunk are returned as regular JSON responses.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, "stream not supported")
		return
	}

	started := false
	startStream := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	full, err := h.chatService.StreamMessage(c.Request.Context(), app.SendMessageInput{
		UserID:    userID,
		SessionID: c.Param("sessionId"),
		Content:   req.Message,
	}, func(chunk string) error {
		startStream()
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			writeError(c, h.log, err, "stream message failed")
			return
		}
		h.log.Error("stream message failed", "session_id", c.Param("sessionId"), "error", err)
		if _, writeErr := c.Writer.Write([]byte("event: error\ndata: stream message failed\n\n")); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	startStream()
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(full) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
