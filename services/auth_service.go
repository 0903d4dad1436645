// Package services holds the application services sitting between the HTTP
// surface and the repositories.
package services

import (
	"fmt"

	"talkify/auth"
	"talkify/domain"
	"talkify/errors"
	"talkify/repositories"
)

type Token string

func (t Token) String() string { return string(t) }

type IAuthService interface {
	Register(req auth.RegisterRequest) (Token, domain.User, error)
	Login(username, password string) (Token, domain.User, error)
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register validates the request, hashes the password and persists the user.
// Validation runs before the expensive hash.
func (s *AuthService) Register(req auth.RegisterRequest) (Token, domain.User, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return "", domain.User{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user := domain.User{
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hashedPassword,
		PreferredLanguage: req.PreferredLanguage,
	}
	userID, err := s.users.CreateUser(user)
	if err != nil {
		// Propagates ErrUserAlreadyExists when the username or email is taken.
		return "", domain.User{}, err
	}

	stored, err := s.users.GetUserByID(userID)
	if err != nil {
		return "", domain.User{}, err
	}

	token, err := s.tokens.Generate(userID, stored.Username)
	if err != nil {
		return "", domain.User{}, errors.ErrTokenGeneration
	}
	return Token(token), stored, nil
}

// Login resolves the user by username, falling back to email. Failures stay
// indistinguishable to prevent user enumeration.
func (s *AuthService) Login(username, password string) (Token, domain.User, error) {
	user, err := s.findUser(username)
	if err != nil {
		return "", domain.User{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", domain.User{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", domain.User{}, errors.ErrTokenGeneration
	}
	return Token(token), user, nil
}

func (s *AuthService) findUser(identifier string) (domain.User, error) {
	user, err := s.users.GetUserByUsername(identifier)
	if err == nil {
		return user, nil
	}
	return s.users.GetUserByEmail(identifier)
}
