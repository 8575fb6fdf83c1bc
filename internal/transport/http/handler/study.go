package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"thinkr-backend/internal/model"
	"thinkr-backend/internal/platform/logger"
	"thinkr-backend/internal/transport/http/response"
)

type StudyService interface {
	GenerateFlashcards(ctx context.Context, userID, documentID uint) (*model.FlashcardSet, error)
	GenerateQuiz(ctx context.Context, userID, documentID uint) (*model.QuizSet, error)
	ListFlashcards(ctx context.Context, userID uint, documentIDs []uint) ([]model.FlashcardSet, error)
	ListQuizzes(ctx context.Context, userID uint, documentIDs []uint) ([]model.QuizSet, error)
}

type StudyHandler struct {
	studyService StudyService
	log          *logger.Logger
}

type GenerateStudyRequest struct {
	DocumentID uint `json:"documentId" binding:"required"`
}

func NewStudyHandler(studyService StudyService, log *logger.Logger) *StudyHandler {
	return &StudyHandler{studyService: studyService, log: log}
}

func (h *StudyHandler) GenerateFlashcards(c *gin.Context) {
	userID, req, ok := h.bindGenerate(c)
	if !ok {
		return
	}
	set, err := h.studyService.GenerateFlashcards(c.Request.Context(), userID, req.DocumentID)
	if err != nil {
		writeError(c, h.log, err, "generate flashcards failed")
		return
	}
	response.OK(c, set)
}

func (h *StudyHandler) GenerateQuiz(c *gin.Context) {
	userID, req, ok := h.bindGenerate(c)
	if !ok {
		return
	}
	set, err := h.studyService.GenerateQuiz(c.Request.Context(), userID, req.DocumentID)
	if err != nil {
		writeError(c, h.log, err, "generate quiz failed")
		return
	}
	response.OK(c, set)
}

func (h *StudyHandler) ListFlashcards(c *gin.Context) {
	userID, documentIDs, ok := h.bindList(c)
	if !ok {
		return
	}
	sets, err := h.studyService.ListFlashcards(c.Request.Context(), userID, documentIDs)
	if err != nil {
		writeError(c, h.log, err, "list flashcards failed")
		return
	}
	response.OK(c, sets)
}

func (h *StudyHandler) ListQuizzes(c *gin.Context) {
	userID, documentIDs, ok := h.bindList(c)
	if !ok {
		return
	}
	sets, err := h.studyService.ListQuizzes(c.Request.Context(), userID, documentIDs)
	if err != nil {
		writeError(c, h.log, err, "list quizzes failed")
		return
	}
	response.OK(c, sets)
}

func (h *StudyHandler) bindGenerate(c *gin.Context) (uint, GenerateStudyRequest, bool) {
	var req GenerateStudyRequest
	userID, ok := currentUser(c)
	if !ok {
		return 0, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return 0, req, false
	}
	return userID, req, true
}

func (h *StudyHandler) bindList(c *gin.Context) (uint, []uint, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return 0, nil, false
	}
	documentIDs, err := parseIDList(c.QueryArray("documentIds"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid documentIds")
		return 0, nil, false
	}
	return userID, documentIDs, true
}
