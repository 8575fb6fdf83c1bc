package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"thinkr-backend/internal/ai"
	"thinkr-backend/internal/platform/chroma"
)

const (
	defaultChunkSize        = 1000
	defaultTopK             = 5
	defaultMaxContextTokens = 4000
	embeddingBatchSize      = 10

	queryAssistantPrompt = "You are a helpful assistant that answers questions based on the provided context."
)

var (
	ErrEmptyQuery        = errors.New("query is empty")
	ErrNoDocumentContent = errors.New("no content found for document")
)

var paragraphSeparator = regexp.MustCompile(`\n\s*\n`)

// VectorStore is the subset of the Chroma client the RAG service needs.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, records []chroma.Record) error
	Query(ctx context.Context, collection string, embedding []float32, n int, where map[string]any) ([]chroma.Match, error)
	Get(ctx context.Context, collection string, ids []string, where map[string]any) ([]chroma.Record, error)
	Delete(ctx context.Context, collection string, ids []string, where map[string]any) error
}

// LLMClient covers chat completion and embeddings against an OpenAI-compatible API.
type LLMClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error)
	EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error)
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error)
}

type RAGOptions struct {
	CollectionPrefix string
	ChunkSize        int
	TopK             int
	MaxContextTokens int
}

type RAGService struct {
	vectors    VectorStore
	llm        LLMClient
	embConfig  ai.EmbeddingConfig
	chatConfig ai.ChatConfig
	opts       RAGOptions
}

func NewRAGService(vectors VectorStore, llm LLMClient, embConfig ai.EmbeddingConfig, chatConfig ai.ChatConfig, opts RAGOptions) *RAGService {
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = "user_"
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = defaultMaxContextTokens
	}
	return &RAGService{
		vectors:    vectors,
		llm:        llm,
		embConfig:  embConfig,
		chatConfig: chatConfig,
		opts:       opts,
	}
}

type IngestInput struct {
	UserID     uint
	DocumentID uint
	Source     string
	Text       string
}

// Ingest replaces every chunk of the document with fresh chunks of input.Text
// and returns how many were stored.
func (s *RAGService) Ingest(ctx context.Context, input IngestInput) (int, error) {
	if input.UserID == 0 || input.DocumentID == 0 {
		return 0, ErrInvalidInput
	}
	collection := s.collectionName(input.UserID)
	docKey := documentKey(input.DocumentID)

	if err := s.vectors.Delete(ctx, collection, nil, documentFilter(input.DocumentID)); err != nil {
		return 0, fmt.Errorf("delete stale chunks failed: %w", err)
	}

	chunks := chunkText(input.Text, s.opts.ChunkSize)
	if len(chunks) == 0 {
		return 0, nil
	}

	records := make([]chroma.Record, 0, len(chunks))
	for start := 0; start < len(chunks); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		vectors, err := s.llm.EmbedBatch(ctx, s.embConfig, chunks[start:end])
		if err != nil {
			return 0, fmt.Errorf("embed chunks failed: %w", err)
		}
		for i, vec := range vectors {
			idx := start + i
			records = append(records, chroma.Record{
				ID:        fmt.Sprintf("%s_chunk_%d", docKey, idx),
				Embedding: vec,
				Document:  chunks[idx],
				Metadata: map[string]any{
					"userId":     strconv.FormatUint(uint64(input.UserID), 10),
					"documentId": docKey,
					"chunkIndex": idx,
					"source":     input.Source,
				},
			})
		}
	}

	if err := s.vectors.Upsert(ctx, collection, records); err != nil {
		return 0, fmt.Errorf("store chunks failed: %w", err)
	}
	return len(records), nil
}

// Search returns the chunks closest to query, restricted to one document when
// documentID is non-nil.
func (s *RAGService) Search(ctx context.Context, userID uint, query string, documentID *uint) ([]chroma.Match, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := s.llm.Embed(ctx, s.embConfig, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	var where map[string]any
	if documentID != nil {
		where = documentFilter(*documentID)
	}
	matches, err := s.vectors.Query(ctx, s.collectionName(userID), vec, s.opts.TopK, where)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	return matches, nil
}

// RetrieveContext runs Search and packs the results into a prompt-sized context.
func (s *RAGService) RetrieveContext(ctx context.Context, userID uint, query string, documentID *uint) (string, error) {
	matches, err := s.Search(ctx, userID, query, documentID)
	if err != nil {
		return "", err
	}
	docs := make([]string, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, m.Document)
	}
	return buildContext(docs, s.opts.MaxContextTokens), nil
}

type QueryInput struct {
	UserID     uint
	Query      string
	DocumentID *uint
}

// Query answers a one-shot question from the user's documents.
func (s *RAGService) Query(ctx context.Context, input QueryInput) (string, error) {
	contextText, err := s.RetrieveContext(ctx, input.UserID, input.Query, input.DocumentID)
	if err != nil {
		return "", err
	}
	answer, err := s.llm.Complete(ctx, s.chatConfig, []ai.ChatMessage{
		{Role: "system", Content: queryAssistantPrompt},
		{Role: "user", Content: fmt.Sprintf("Context: %s\n\nQuestion: %s", contextText, strings.TrimSpace(input.Query))},
	})
	if err != nil {
		return "", fmt.Errorf("query llm failed: %w", err)
	}
	return answer, nil
}

// FetchDocumentText rebuilds a document's text from its stored chunks.
func (s *RAGService) FetchDocumentText(ctx context.Context, userID, documentID uint) (string, error) {
	if userID == 0 || documentID == 0 {
		return "", ErrInvalidInput
	}
	records, err := s.vectors.Get(ctx, s.collectionName(userID), nil, documentFilter(documentID))
	if err != nil {
		return "", fmt.Errorf("fetch document chunks failed: %w", err)
	}
	if len(records) == 0 {
		return "", ErrNoDocumentContent
	}
	sort.SliceStable(records, func(i, j int) bool {
		return chunkIndex(records[i].Metadata) < chunkIndex(records[j].Metadata)
	})
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, r.Document)
	}
	return strings.Join(parts, "\n"), nil
}

func (s *RAGService) DeleteDocumentChunks(ctx context.Context, userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	if err := s.vectors.Delete(ctx, s.collectionName(userID), nil, documentFilter(documentID)); err != nil {
		return fmt.Errorf("delete document chunks failed: %w", err)
	}
	return nil
}

func (s *RAGService) collectionName(userID uint) string {
	return s.opts.CollectionPrefix + strconv.FormatUint(uint64(userID), 10)
}

func documentKey(documentID uint) string {
	return strconv.FormatUint(uint64(documentID), 10)
}

func documentFilter(documentID uint) map[string]any {
	return map[string]any{"documentId": documentKey(documentID)}
}

// chunkIndex reads the chunkIndex metadata, which comes back from JSON as a float.
func chunkIndex(meta map[string]any) int {
	switch v := meta["chunkIndex"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// chunkText groups paragraphs into chunks. A chunk is closed once the next
// paragraph would push it past limit; an oversized paragraph stays whole.
func chunkText(text string, limit int) []string {
	var (
		chunks     []string
		current    string
		currentLen int
	)
	for _, para := range paragraphSeparator.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLen := utf8.RuneCountInString(para)
		if current != "" && currentLen+paraLen > limit {
			chunks = append(chunks, current)
			current, currentLen = "", 0
		}
		if current == "" {
			current, currentLen = para, paraLen
		} else {
			current += "\n\n" + para
			currentLen += 2 + paraLen
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// buildContext concatenates docs in rank order until the rough token estimate
// (four characters per token) would pass maxTokens.
func buildContext(docs []string, maxTokens int) string {
	var (
		b     strings.Builder
		chars int
	)
	for _, doc := range docs {
		docLen := utf8.RuneCountInString(doc)
		if chars+docLen > maxTokens*4 {
			break
		}
		b.WriteString(doc)
		b.WriteString("\n\n")
		chars += docLen + 2
	}
	return strings.TrimSpace(b.String())
}
