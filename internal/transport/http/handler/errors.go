package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"thinkr-backend/internal/app"
	"thinkr-backend/internal/platform/logger"
	"thinkr-backend/internal/transport/http/middleware"
	"thinkr-backend/internal/transport/http/response"
)

// writeError maps service errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a generic failure.
func writeError(c *gin.Context, log *logger.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrEmptyQuery),
		errors.Is(err, app.ErrMessageEmpty),
		errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrDocumentNotFound),
		errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrNoDocumentContent):
		response.Error(c, http.StatusNotFound, err.Error())
	default:
		if log != nil {
			log.Error(fallback, "path", c.FullPath(), "error", err)
		}
		response.Error(c, http.StatusInternalServerError, fallback)
	}
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "invalid token payload")
	}
	return userID, ok
}

// parseIDList accepts repeated and comma separated ids: ?ids=1&ids=2,3.
func parseIDList(values []string) ([]uint, error) {
	var ids []uint
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return nil, app.ErrInvalidInput
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}

// cleanNames trims names and drops blanks. Names are never split on commas
// since file names may contain them.
func cleanNames(values []string) []string {
	var names []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			names = append(names, v)
		}
	}
	return names
}
