package app

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"thinkr-backend/internal/ai"
	"thinkr-backend/internal/model"
	"thinkr-backend/internal/platform/chroma"
)

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	args := m.Called(ctx, cfg, messages)
	return args.String(0), args.Error(1)
}

func (m *MockLLM) StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	args := m.Called(ctx, cfg, messages, onChunk)
	return args.String(0), args.Error(1)
}

func (m *MockLLM) EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error) {
	args := m.Called(ctx, cfg, texts)
	vectors, _ := args.Get(0).([][]float32)
	return vectors, args.Error(1)
}

func (m *MockLLM) Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error) {
	args := m.Called(ctx, cfg, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, collection string, records []chroma.Record) error {
	return m.Called(ctx, collection, records).Error(0)
}

func (m *MockVectorStore) Query(ctx context.Context, collection string, embedding []float32, n int, where map[string]any) ([]chroma.Match, error) {
	args := m.Called(ctx, collection, embedding, n, where)
	matches, _ := args.Get(0).([]chroma.Match)
	return matches, args.Error(1)
}

func (m *MockVectorStore) Get(ctx context.Context, collection string, ids []string, where map[string]any) ([]chroma.Record, error) {
	args := m.Called(ctx, collection, ids, where)
	records, _ := args.Get(0).([]chroma.Record)
	return records, args.Error(1)
}

func (m *MockVectorStore) Delete(ctx context.Context, collection string, ids []string, where map[string]any) error {
	return m.Called(ctx, collection, ids, where).Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	args := m.Called(ctx, googleID)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) SetSubscribed(ctx context.Context, id uint, subscribed bool) (*model.User, error) {
	args := m.Called(ctx, id, subscribed)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Upsert(ctx context.Context, doc *model.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentRepository) GetByIDAndUser(ctx context.Context, id, userID uint) (*model.Document, error) {
	args := m.Called(ctx, id, userID)
	doc, _ := args.Get(0).(*model.Document)
	return doc, args.Error(1)
}

func (m *MockDocumentRepository) GetByUserAndName(ctx context.Context, userID uint, name string) (*model.Document, error) {
	args := m.Called(ctx, userID, name)
	doc, _ := args.Get(0).(*model.Document)
	return doc, args.Error(1)
}

func (m *MockDocumentRepository) ListByUser(ctx context.Context, userID uint) ([]model.Document, error) {
	args := m.Called(ctx, userID)
	docs, _ := args.Get(0).([]model.Document)
	return docs, args.Error(1)
}

func (m *MockDocumentRepository) ListByUserAndNames(ctx context.Context, userID uint, names []string) ([]model.Document, error) {
	args := m.Called(ctx, userID, names)
	docs, _ := args.Get(0).([]model.Document)
	return docs, args.Error(1)
}

func (m *MockDocumentRepository) MarkActivityGenerated(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocumentRepository) DeleteByIDAndUser(ctx context.Context, id, userID uint) error {
	return m.Called(ctx, id, userID).Error(0)
}

type MockStudySetRepository struct {
	mock.Mock
}

func (m *MockStudySetRepository) UpsertFlashcards(ctx context.Context, set *model.FlashcardSet) error {
	return m.Called(ctx, set).Error(0)
}

func (m *MockStudySetRepository) UpsertQuiz(ctx context.Context, set *model.QuizSet) error {
	return m.Called(ctx, set).Error(0)
}

func (m *MockStudySetRepository) ListFlashcards(ctx context.Context, userID uint, documentIDs []uint) ([]model.FlashcardSet, error) {
	args := m.Called(ctx, userID, documentIDs)
	sets, _ := args.Get(0).([]model.FlashcardSet)
	return sets, args.Error(1)
}

func (m *MockStudySetRepository) ListQuizzes(ctx context.Context, userID uint, documentIDs []uint) ([]model.QuizSet, error) {
	args := m.Called(ctx, userID, documentIDs)
	sets, _ := args.Get(0).([]model.QuizSet)
	return sets, args.Error(1)
}

func (m *MockStudySetRepository) DeleteByDocument(ctx context.Context, userID, documentID uint) error {
	return m.Called(ctx, userID, documentID).Error(0)
}

type MockChatSessionRepository struct {
	mock.Mock
}

func (m *MockChatSessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockChatSessionRepository) Get(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*model.ChatSession)
	return session, args.Error(1)
}

func (m *MockChatSessionRepository) ListByUser(ctx context.Context, userID uint, documentID *uint) ([]model.ChatSession, error) {
	args := m.Called(ctx, userID, documentID)
	sessions, _ := args.Get(0).([]model.ChatSession)
	return sessions, args.Error(1)
}

func (m *MockChatSessionRepository) AppendMessages(ctx context.Context, sessionID string, messages ...model.ChatMessage) (*model.ChatSession, error) {
	args := m.Called(ctx, sessionID, messages)
	session, _ := args.Get(0).(*model.ChatSession)
	return session, args.Error(1)
}

func (m *MockChatSessionRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

type MockSessionCache struct {
	mock.Mock
}

func (m *MockSessionCache) Get(ctx context.Context, sessionID string) (*model.ChatSession, bool, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*model.ChatSession)
	return session, args.Bool(1), args.Error(2)
}

func (m *MockSessionCache) Set(ctx context.Context, session *model.ChatSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionCache) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) RetrieveContext(ctx context.Context, userID uint, query string, documentID *uint) (string, error) {
	args := m.Called(ctx, userID, query, documentID)
	return args.String(0), args.Error(1)
}

type MockTextFetcher struct {
	mock.Mock
}

func (m *MockTextFetcher) FetchDocumentText(ctx context.Context, userID, documentID uint) (string, error) {
	args := m.Called(ctx, userID, documentID)
	return args.String(0), args.Error(1)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	return m.Called(ctx, key, contentType, body, size).Error(0)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockBlobStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractText(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) Ingest(ctx context.Context, input IngestInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

func (m *MockIndexer) DeleteDocumentChunks(ctx context.Context, userID, documentID uint) error {
	return m.Called(ctx, userID, documentID).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, job any) error {
	return m.Called(ctx, job).Error(0)
}
