package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"thinkr-backend/internal/app"
	"thinkr-backend/internal/platform/logger"
	"thinkr-backend/internal/transport/http/response"
)

type DocumentService interface {
	Upload(ctx context.Context, userID uint, files []app.UploadFile) ([]app.UploadedDocument, error)
	Delete(ctx context.Context, userID uint, names []string) error
	Get(ctx context.Context, userID uint, names []string) ([]app.DocumentView, error)
}

type DocumentHandler struct {
	documentService DocumentService
	log             *logger.Logger
}

type DeleteDocumentsRequest struct {
	Names []string `json:"names" binding:"required,min=1"`
}

func NewDocumentHandler(documentService DocumentService, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, log: log}
}

// Upload accepts one or more files under the "documents" form field. A single
// "document" field is accepted as well.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid multipart form")
		return
	}
	headers := make([]*multipart.FileHeader, 0, len(form.File["documents"])+len(form.File["document"]))
	headers = append(headers, form.File["documents"]...)
	headers = append(headers, form.File["document"]...)
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, "no documents uploaded")
		return
	}

	files := make([]app.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}

	docs, err := h.documentService.Upload(c.Request.Context(), userID, files)
	if err != nil {
		writeError(c, h.log, err, "upload documents failed")
		return
	}
	response.OK(c, gin.H{"docs": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req DeleteDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	names := cleanNames(req.Names)
	if len(names) == 0 {
		response.Error(c, http.StatusBadRequest, "names is required")
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), userID, names); err != nil {
		writeError(c, h.log, err, "delete documents failed")
		return
	}
	response.Message(c, http.StatusOK, "documents deleted")
}

func (h *DocumentHandler) Retrieve(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	docs, err := h.documentService.Get(c.Request.Context(), userID, cleanNames(c.QueryArray("names")))
	if err != nil {
		writeError(c, h.log, err, "retrieve documents failed")
		return
	}
	response.OK(c, gin.H{"docs": docs})
}

func uploadFile(fh *multipart.FileHeader) app.UploadFile {
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return app.UploadFile{
		Name:        fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
