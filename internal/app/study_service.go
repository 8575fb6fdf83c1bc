package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"thinkr-backend/internal/ai"
	"thinkr-backend/internal/model"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrGenerationFailed = errors.New("model returned no usable study material")
)

const flashcardPrompt = `Generate a list of flashcards from the following content where for each flashcard
the front is the term or word and the back is the corresponding definition of the word.
Keep terms short as possible and do not repeat terms or create flashcards with similar terms with similar definitions.
Keep definitions concise and not too overly verbose.
Always generate only a valid JSON array of JSON objects of the form {"front": string, "back": string}.
Content: %s`

const quizPrompt = `Generate a multiple choice quiz from the following content.
Each question has exactly four options keyed "A", "B", "C" and "D", and the answer is the key of the correct option.
Do not repeat questions. Keep questions and options concise.
Always generate only a valid JSON array of JSON objects of the form
{"question": string, "answer": "A" | "B" | "C" | "D", "options": {"A": string, "B": string, "C": string, "D": string}}.
Content: %s`

type DocumentRepository interface {
	Upsert(ctx context.Context, doc *model.Document) error
	GetByIDAndUser(ctx context.Context, id, userID uint) (*model.Document, error)
	GetByUserAndName(ctx context.Context, userID uint, name string) (*model.Document, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Document, error)
	ListByUserAndNames(ctx context.Context, userID uint, names []string) ([]model.Document, error)
	MarkActivityGenerated(ctx context.Context, id uint) error
	DeleteByIDAndUser(ctx context.Context, id, userID uint) error
}

type StudySetRepository interface {
	UpsertFlashcards(ctx context.Context, set *model.FlashcardSet) error
	UpsertQuiz(ctx context.Context, set *model.QuizSet) error
	ListFlashcards(ctx context.Context, userID uint, documentIDs []uint) ([]model.FlashcardSet, error)
	ListQuizzes(ctx context.Context, userID uint, documentIDs []uint) ([]model.QuizSet, error)
	DeleteByDocument(ctx context.Context, userID, documentID uint) error
}

type DocumentTextFetcher interface {
	FetchDocumentText(ctx context.Context, userID, documentID uint) (string, error)
}

type StudyService struct {
	docRepo    DocumentRepository
	setRepo    StudySetRepository
	texts      DocumentTextFetcher
	llm        LLMClient
	chatConfig ai.ChatConfig
}

func NewStudyService(
	docRepo DocumentRepository,
	setRepo StudySetRepository,
	texts DocumentTextFetcher,
	llm LLMClient,
	chatConfig ai.ChatConfig,
) *StudyService {
	return &StudyService{
		docRepo:    docRepo,
		setRepo:    setRepo,
		texts:      texts,
		llm:        llm,
		chatConfig: chatConfig,
	}
}

func (s *StudyService) GenerateFlashcards(ctx context.Context, userID, documentID uint) (*model.FlashcardSet, error) {
	content, err := s.documentText(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	var cards []model.Flashcard
	if err := s.generate(ctx, fmt.Sprintf(flashcardPrompt, content), &cards); err != nil {
		return nil, err
	}
	cards = cleanFlashcards(cards)
	if len(cards) == 0 {
		return nil, ErrGenerationFailed
	}

	set := &model.FlashcardSet{UserID: userID, DocumentID: documentID, Flashcards: cards}
	if err := s.setRepo.UpsertFlashcards(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *StudyService) GenerateQuiz(ctx context.Context, userID, documentID uint) (*model.QuizSet, error) {
	content, err := s.documentText(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	var questions []model.QuizQuestion
	if err := s.generate(ctx, fmt.Sprintf(quizPrompt, content), &questions); err != nil {
		return nil, err
	}
	questions = cleanQuiz(questions)
	if len(questions) == 0 {
		return nil, ErrGenerationFailed
	}

	set := &model.QuizSet{UserID: userID, DocumentID: documentID, Quiz: questions}
	if err := s.setRepo.UpsertQuiz(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *StudyService) ListFlashcards(ctx context.Context, userID uint, documentIDs []uint) ([]model.FlashcardSet, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.setRepo.ListFlashcards(ctx, userID, documentIDs)
}

func (s *StudyService) ListQuizzes(ctx context.Context, userID uint, documentIDs []uint) ([]model.QuizSet, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.setRepo.ListQuizzes(ctx, userID, documentIDs)
}

// HandleStudyJob generates both study sets for a freshly uploaded document
// and then marks its activity generation as complete. The mark is skipped
// when the document was re-uploaded or removed while the job ran; the newer
// upload's own job completes it.
func (s *StudyService) HandleStudyJob(ctx context.Context, job model.StudyJob) error {
	if _, err := s.GenerateFlashcards(ctx, job.UserID, job.DocumentID); err != nil {
		return fmt.Errorf("generate flashcards failed: %w", err)
	}
	if _, err := s.GenerateQuiz(ctx, job.UserID, job.DocumentID); err != nil {
		return fmt.Errorf("generate quiz failed: %w", err)
	}

	doc, err := s.docRepo.GetByIDAndUser(ctx, job.DocumentID, job.UserID)
	if err != nil {
		return err
	}
	if doc == nil || (job.UploadTime != "" && doc.UploadTime != job.UploadTime) {
		return nil
	}
	return s.docRepo.MarkActivityGenerated(ctx, job.DocumentID)
}

func (s *StudyService) documentText(ctx context.Context, userID, documentID uint) (string, error) {
	if userID == 0 || documentID == 0 {
		return "", ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUser(ctx, documentID, userID)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", ErrDocumentNotFound
	}
	return s.texts.FetchDocumentText(ctx, userID, documentID)
}

func (s *StudyService) generate(ctx context.Context, prompt string, out interface{}) error {
	raw, err := s.llm.Complete(ctx, s.chatConfig, []ai.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return fmt.Errorf("study llm failed: %w", err)
	}
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return nil
}

// extractJSONArray pulls the outermost JSON array out of a model reply,
// dropping markdown code fences and any prose around it.
func extractJSONArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return strings.TrimSpace(raw)
	}
	return raw[start : end+1]
}

func cleanFlashcards(cards []model.Flashcard) []model.Flashcard {
	seen := make(map[string]struct{}, len(cards))
	out := make([]model.Flashcard, 0, len(cards))
	for _, c := range cards {
		c.Front = strings.TrimSpace(c.Front)
		c.Back = strings.TrimSpace(c.Back)
		if c.Front == "" || c.Back == "" {
			continue
		}
		key := strings.ToLower(c.Front)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func cleanQuiz(questions []model.QuizQuestion) []model.QuizQuestion {
	out := make([]model.QuizQuestion, 0, len(questions))
	for _, q := range questions {
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.ToUpper(strings.TrimSpace(q.Answer))
		if q.Question == "" || len(q.Options) < 2 {
			continue
		}
		if _, ok := q.Options[q.Answer]; !ok {
			continue
		}
		out = append(out, q)
	}
	return out
}
