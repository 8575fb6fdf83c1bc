package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"thinkr-backend/internal/ai"
	"thinkr-backend/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
)

const (
	chatSystemPrompt      = "You are a helpful assistant that provides accurate information based on the context provided."
	chatContextPromptTmpl = "Additional context information:\n%s\n\nUse this information to help answer the user's question."
	emptyModelReply       = "The model returned an empty response."
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *model.ChatSession) error
	Get(ctx context.Context, sessionID string) (*model.ChatSession, error)
	ListByUser(ctx context.Context, userID uint, documentID *uint) ([]model.ChatSession, error)
	AppendMessages(ctx context.Context, sessionID string, messages ...model.ChatMessage) (*model.ChatSession, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// SessionCache is a read-through cache in front of ChatSessionRepository.
// Set must keep whichever snapshot is newer and must not revive a session
// removed by Delete. Cache failures never fail a request.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*model.ChatSession, bool, error)
	Set(ctx context.Context, session *model.ChatSession) error
	Delete(ctx context.Context, sessionID string) error
}

type ContextRetriever interface {
	RetrieveContext(ctx context.Context, userID uint, query string, documentID *uint) (string, error)
}

type ChatService struct {
	sessionRepo ChatSessionRepository
	docRepo     DocumentRepository
	cache       SessionCache
	retriever   ContextRetriever
	llm         LLMClient
	chatConfig  ai.ChatConfig
	now         func() time.Time
}

type CreateSessionInput struct {
	UserID     uint
	DocumentID *uint
	Metadata   map[string]interface{}
}

type SendMessageInput struct {
	UserID    uint
	SessionID string
	Content   string
}

// NewChatService builds the chat service. temperature is applied to every
// chat completion; cache may be nil.
func NewChatService(
	sessionRepo ChatSessionRepository,
	docRepo DocumentRepository,
	cache SessionCache,
	retriever ContextRetriever,
	llm LLMClient,
	chatConfig ai.ChatConfig,
	temperature float64,
) *ChatService {
	return &ChatService{
		sessionRepo: sessionRepo,
		docRepo:     docRepo,
		cache:       cache,
		retriever:   retriever,
		llm:         llm,
		chatConfig:  chatConfig.WithTemperature(temperature),
		now:         time.Now,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, input CreateSessionInput) (*model.ChatSession, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	if input.DocumentID != nil {
		doc, err := s.docRepo.GetByIDAndUser(ctx, *input.DocumentID, input.UserID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, ErrDocumentNotFound
		}
	}

	now := s.now().UTC()
	session := &model.ChatSession{
		SessionID:  uuid.NewString(),
		UserID:     input.UserID,
		DocumentID: input.DocumentID,
		Messages: []model.ChatMessage{{
			Role:      model.RoleSystem,
			Content:   chatSystemPrompt,
			Timestamp: now,
		}},
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	s.cacheSet(ctx, session)
	return session, nil
}

func (s *ChatService) GetSession(ctx context.Context, userID uint, sessionID string) (*model.ChatSession, error) {
	if userID == 0 || strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	return s.ownedSession(ctx, userID, sessionID)
}

func (s *ChatService) ListSessions(ctx context.Context, userID uint, documentID *uint) ([]model.ChatSession, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUser(ctx, userID, documentID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID uint, sessionID string) error {
	if userID == 0 || strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	deleted, err := s.sessionRepo.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, sessionID)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

// SendMessage answers the user's message using the session history and
// context retrieved from the user's documents.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (string, error) {
	return s.reply(ctx, input, func(prompt []ai.ChatMessage) (string, error) {
		return s.llm.Complete(ctx, s.chatConfig, prompt)
	})
}

// StreamMessage is SendMessage with the reply delivered to onChunk as it is
// generated. Nothing is persisted if the stream fails.
func (s *ChatService) StreamMessage(ctx context.Context, input SendMessageInput, onChunk func(string) error) (string, error) {
	return s.reply(ctx, input, func(prompt []ai.ChatMessage) (string, error) {
		return s.llm.StreamComplete(ctx, s.chatConfig, prompt, onChunk)
	})
}

func (s *ChatService) reply(
	ctx context.Context,
	input SendMessageInput,
	complete func(prompt []ai.ChatMessage) (string, error),
) (string, error) {
	if input.UserID == 0 || strings.TrimSpace(input.SessionID) == "" {
		return "", ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return "", ErrMessageEmpty
	}

	session, err := s.ownedSession(ctx, input.UserID, input.SessionID)
	if err != nil {
		return "", err
	}

	userMessage := model.ChatMessage{Role: model.RoleUser, Content: content, Timestamp: s.now().UTC()}
	contextText, err := s.retriever.RetrieveContext(ctx, input.UserID, content, session.DocumentID)
	if err != nil {
		return "", fmt.Errorf("retrieve chat context failed: %w", err)
	}

	answer, err := complete(buildChatPrompt(session.Messages, userMessage, contextText))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyModelReply
	}

	assistantMessage := model.ChatMessage{Role: model.RoleAssistant, Content: answer, Timestamp: s.now().UTC()}
	updated, err := s.sessionRepo.AppendMessages(ctx, input.SessionID, userMessage, assistantMessage)
	if err != nil {
		return "", err
	}
	if updated == nil {
		return "", ErrSessionNotFound
	}
	s.cacheSet(ctx, updated)
	return answer, nil
}

func (s *ChatService) ownedSession(ctx context.Context, userID uint, sessionID string) (*model.ChatSession, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *ChatService) loadSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	if s.cache != nil {
		if cached, hit, err := s.cache.Get(ctx, sessionID); err == nil && hit {
			return cached, nil
		}
	}
	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		s.cacheSet(ctx, session)
	}
	return session, nil
}

func (s *ChatService) cacheSet(ctx context.Context, session *model.ChatSession) {
	if s.cache != nil {
		_ = s.cache.Set(ctx, session)
	}
}

// buildChatPrompt turns the stored history plus the pending user message into
// model input. The retrieved context goes last as a system message and is never stored.
func buildChatPrompt(history []model.ChatMessage, pending model.ChatMessage, contextText string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	for _, m := range history {
		role := m.Role
		if !model.ValidRole(role) {
			role = model.RoleUser
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: pending.Role, Content: pending.Content})
	if contextText != "" {
		messages = append(messages, ai.ChatMessage{
			Role:    model.RoleSystem,
			Content: fmt.Sprintf(chatContextPromptTmpl, contextText),
		})
	}
	return messages
}
