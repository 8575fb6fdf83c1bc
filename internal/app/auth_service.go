package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"thinkr-backend/internal/model"
	"thinkr-backend/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
	SetSubscribed(ctx context.Context, id uint, subscribed bool) (*model.User, error)
}

type AuthService struct {
	userRepo      UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

type LoginInput struct {
	GoogleID string
	Name     string
	Email    string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(userRepo UserRepository, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// Login signs in a Google account, creating the user on first sight.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	googleID := strings.TrimSpace(input.GoogleID)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	name := strings.TrimSpace(input.Name)
	if googleID == "" || email == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByGoogleID(ctx, googleID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &model.User{
			GoogleID: googleID,
			Email:    email,
			Name:     name,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, user.ID, user.GoogleID, s.jwtExpiration)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SetSubscription flips the subscription flag and returns the updated user.
func (s *AuthService) SetSubscription(ctx context.Context, userID uint, subscribed bool) (*model.User, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.SetSubscribed(ctx, userID, subscribed)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
