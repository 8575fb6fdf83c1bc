package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"thinkr-backend/internal/app"
	"thinkr-backend/internal/platform/logger"
	"thinkr-backend/internal/transport/http/response"
)

type RAGService interface {
	Query(ctx context.Context, input app.QueryInput) (string, error)
}

type RAGHandler struct {
	ragService RAGService
	log        *logger.Logger
}

type RAGQueryRequest struct {
	Query      string `json:"query"`
	DocumentID *uint  `json:"documentId"`
}

func NewRAGHandler(ragService RAGService, log *logger.Logger) *RAGHandler {
	return &RAGHandler{ragService: ragService, log: log}
}

func (h *RAGHandler) Query(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req RAGQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	answer, err := h.ragService.Query(c.Request.Context(), app.QueryInput{
		UserID:     userID,
		Query:      req.Query,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		writeError(c, h.log, err, "rag query failed")
		return
	}
	response.OK(c, gin.H{"response": answer})
}
