package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"thinkr-backend/internal/app"
	"thinkr-backend/internal/model"
	"thinkr-backend/internal/platform/logger"
	"thinkr-backend/internal/transport/http/response"
)

type AuthService interface {
	Login(ctx context.Context, input app.LoginInput) (*app.AuthResult, error)
	GetUserByID(ctx context.Context, id uint) (*model.User, error)
	SetSubscription(ctx context.Context, userID uint, subscribed bool) (*model.User, error)
}

type AuthHandler struct {
	authService AuthService
	log         *logger.Logger
}

type LoginRequest struct {
	GoogleID string `json:"googleId" binding:"required,max=64"`
	Name     string `json:"name" binding:"max=128"`
	Email    string `json:"email" binding:"required,email,max=128"`
}

func NewAuthHandler(authService AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		GoogleID: req.GoogleID,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		writeError(c, h.log, err, "login failed")
		return
	}

	response.OK(c, gin.H{
		"token": result.Token,
		"user":  result.User,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err, "fetch current user failed")
		return
	}
	response.OK(c, user)
}

func (h *AuthHandler) Subscribe(c *gin.Context) {
	h.setSubscription(c, true)
}

func (h *AuthHandler) Unsubscribe(c *gin.Context) {
	h.setSubscription(c, false)
}

func (h *AuthHandler) setSubscription(c *gin.Context, subscribed bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.authService.SetSubscription(c.Request.Context(), userID, subscribed)
	if err != nil {
		writeError(c, h.log, err, "update subscription failed")
		return
	}
	response.OK(c, user)
}
