package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"thinkr-backend/internal/ai"
	"thinkr-backend/internal/platform/chroma"
)

func TestChunkText(t *testing.T) {
	long := strings.Repeat("x", 1500)
	p600 := strings.Repeat("p", 600)
	accented := strings.Repeat("é", 300)
	kana := strings.Repeat("あ", 600)

	cases := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: nil},
		{name: "whitespace only", text: "  \n \n\n\t", want: nil},
		{name: "short paragraphs merge", text: "alpha\n\nbeta\n  \ngamma", want: []string{"alpha\n\nbeta\n\ngamma"}},
		{name: "split when limit passed", text: p600 + "\n\n" + p600, want: []string{p600, p600}},
		{name: "oversized paragraph kept whole", text: "intro\n\n" + long, want: []string{"intro", long}},
		{name: "single newline is not a break", text: "line one\nline two", want: []string{"line one\nline two"}},
		{name: "limit counts characters not bytes", text: accented + "\n\n" + accented + "\n\n" + accented, want: []string{accented + "\n\n" + accented + "\n\n" + accented}},
		{name: "multi-byte split when limit passed", text: kana + "\n\n" + kana, want: []string{kana, kana}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, chunkText(tc.text, 1000))
		})
	}
}

func TestBuildContextStopsAtBudget(t *testing.T) {
	docs := []string{strings.Repeat("a", 10), strings.Repeat("b", 8), "cc"}
	got := buildContext(docs, 5)
	assert.Equal(t, strings.Repeat("a", 10)+"\n\n"+strings.Repeat("b", 8), got)

	assert.Equal(t, "", buildContext([]string{strings.Repeat("z", 100)}, 5))
	assert.Equal(t, "", buildContext(nil, 4000))

	wide := []string{strings.Repeat("é", 10), strings.Repeat("ü", 8), "çç"}
	assert.Equal(t, strings.Repeat("é", 10)+"\n\n"+strings.Repeat("ü", 8), buildContext(wide, 5))
}

func newTestRAG(vectors *MockVectorStore, llm *MockLLM) *RAGService {
	return NewRAGService(vectors, llm, ai.EmbeddingConfig{Model: "emb"}, ai.ChatConfig{Model: "chat"}, RAGOptions{})
}

func TestRAGIngestBatchesAndReplacesChunks(t *testing.T) {
	ctx := context.Background()
	vectors := new(MockVectorStore)
	llm := new(MockLLM)
	svc := newTestRAG(vectors, llm)

	paragraphs := make([]string, 12)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat(string(rune('a'+i)), 600)
	}
	text := strings.Join(paragraphs, "\n\n")

	vectors.On("Delete", ctx, "user_7", []string(nil), map[string]any{"documentId": "3"}).Return(nil).Once()
	for _, size := range []int{10, 2} {
		size := size
		out := make([][]float32, size)
		for i := range out {
			out[i] = []float32{float32(i)}
		}
		llm.On("EmbedBatch", ctx, ai.EmbeddingConfig{Model: "emb"}, mock.MatchedBy(func(texts []string) bool {
			return len(texts) == size
		})).Return(out, nil).Once()
	}
	vectors.On("Upsert", ctx, "user_7", mock.MatchedBy(func(records []chroma.Record) bool {
		if len(records) != 12 {
			return false
		}
		last := records[11]
		return last.ID == "3_chunk_11" &&
			last.Document == paragraphs[11] &&
			last.Metadata["chunkIndex"] == 11 &&
			last.Metadata["userId"] == "7" &&
			last.Metadata["documentId"] == "3" &&
			last.Metadata["source"] == "bio.pdf"
	})).Return(nil).Once()

	n, err := svc.Ingest(ctx, IngestInput{UserID: 7, DocumentID: 3, Source: "bio.pdf", Text: text})
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	vectors.AssertExpectations(t)
	llm.AssertExpectations(t)
}

func TestRAGIngestEmptyTextOnlyClearsChunks(t *testing.T) {
	ctx := context.Background()
	vectors := new(MockVectorStore)
	llm := new(MockLLM)
	svc := newTestRAG(vectors, llm)

	vectors.On("Delete", ctx, "user_1", []string(nil), map[string]any{"documentId": "2"}).Return(nil).Once()

	n, err := svc.Ingest(ctx, IngestInput{UserID: 1, DocumentID: 2, Text: " \n\n "})
	require.NoError(t, err)
	assert.Zero(t, n)
	vectors.AssertExpectations(t)
	llm.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestRAGQuery(t *testing.T) {
	ctx := context.Background()
	vectors := new(MockVectorStore)
	llm := new(MockLLM)
	svc := newTestRAG(vectors, llm)
	docID := uint(3)

	llm.On("Embed", ctx, ai.EmbeddingConfig{Model: "emb"}, "what is ATP?").Return([]float32{0.1, 0.2}, nil).Once()
	vectors.On("Query", ctx, "user_7", []float32{0.1, 0.2}, 5, map[string]any{"documentId": "3"}).
		Return([]chroma.Match{{Document: "ATP stores energy."}, {Document: "Cells use ATP."}}, nil).Once()
	llm.On("Complete", ctx, ai.ChatConfig{Model: "chat"}, []ai.ChatMessage{
		{Role: "system", Content: queryAssistantPrompt},
		{Role: "user", Content: "Context: ATP stores energy.\n\nCells use ATP.\n\nQuestion: what is ATP?"},
	}).Return("An energy carrier.", nil).Once()

	answer, err := svc.Query(ctx, QueryInput{UserID: 7, Query: "  what is ATP?  ", DocumentID: &docID})
	require.NoError(t, err)
	assert.Equal(t, "An energy carrier.", answer)

	vectors.AssertExpectations(t)
	llm.AssertExpectations(t)
}

func TestRAGQueryRejectsEmpty(t *testing.T) {
	svc := newTestRAG(new(MockVectorStore), new(MockLLM))

	_, err := svc.Query(context.Background(), QueryInput{UserID: 1, Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Query(context.Background(), QueryInput{Query: "hi"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRAGSearchWithoutDocumentHasNoFilter(t *testing.T) {
	ctx := context.Background()
	vectors := new(MockVectorStore)
	llm := new(MockLLM)
	svc := newTestRAG(vectors, llm)

	llm.On("Embed", ctx, mock.Anything, "mitosis").Return([]float32{1}, nil).Once()
	vectors.On("Query", ctx, "user_2", []float32{1}, 5, map[string]any(nil)).Return([]chroma.Match{}, nil).Once()

	matches, err := svc.Search(ctx, 2, "mitosis", nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
	vectors.AssertExpectations(t)
}

func TestRAGFetchDocumentTextOrdersChunks(t *testing.T) {
	ctx := context.Background()
	vectors := new(MockVectorStore)
	svc := newTestRAG(vectors, new(MockLLM))

	vectors.On("Get", ctx, "user_1", []string(nil), map[string]any{"documentId": "9"}).Return([]chroma.Record{
		{Document: "third", Metadata: map[string]any{"chunkIndex": float64(2)}},
		{Document: "first", Metadata: map[string]any{"chunkIndex": float64(0)}},
		{Document: "second", Metadata: map[string]any{"chunkIndex": float64(1)}},
	}, nil).Once()

	text, err := svc.FetchDocumentText(ctx, 1, 9)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\nthird", text)
}

func TestRAGFetchDocumentTextErrors(t *testing.T) {
	ctx := context.Background()
	vectors := new(MockVectorStore)
	svc := newTestRAG(vectors, new(MockLLM))

	vectors.On("Get", ctx, "user_1", []string(nil), map[string]any{"documentId": "9"}).Return([]chroma.Record{}, nil).Once()
	_, err := svc.FetchDocumentText(ctx, 1, 9)
	assert.ErrorIs(t, err, ErrNoDocumentContent)

	boom := errors.New("chroma down")
	vectors.On("Get", ctx, "user_1", []string(nil), map[string]any{"documentId": "10"}).Return(nil, boom).Once()
	_, err = svc.FetchDocumentText(ctx, 1, 10)
	assert.ErrorIs(t, err, boom)
}
