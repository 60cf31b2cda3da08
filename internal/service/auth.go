package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/devconnect/internal/apperror"
	"github.com/sakif/devconnect/internal/auth"
	"github.com/sakif/devconnect/internal/model"
	"github.com/sakif/devconnect/internal/repository"
)

const (
	MinPasswordLength = 6

	MsgNameRequired       = "Name is required"
	MsgEmailInvalid       = "Please include a valid email"
	MsgPasswordTooShort   = "Please enter a password with 6 or more characters"
	MsgInvalidCredentials = "Invalid credentials"
)

// AuthService handles account creation and sign-in, and is the one place
// tokens are issued.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (store)
//	                               ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Two ways in: email + password (Register/Login) and GitHub OAuth
// (LoginOrRegisterGitHub). Both end in the same AuthResult.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued token so the handler
// can respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", MsgNameRequired)
	}
	email, ok := parseEmail(email)
	if !ok {
		return nil, apperror.ValidationFailed("email", MsgEmailInvalid)
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", MsgPasswordTooShort)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		Avatar:       gravatarURL(email),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks email and password. Unknown email and wrong password give the
// same error so the response does not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email, ok := parseEmail(email)
	if !ok || password == "" {
		return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	// GitHub-only accounts have no hash and cannot sign in this way.
	if user.PasswordHash == "" {
		return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("password verification failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.ValidationFailed("", MsgInvalidCredentials)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback: upsert the user
// on github_id (first login inserts, later ones refresh name and avatar),
// then issue a token.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID: ghUser.ID,
		Name:     ghUser.DisplayName(),
		Email:    ghUser.Email,
		Avatar:   ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", ghUser.Login),
	)
	return s.issue(user)
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthenticated(MsgNotAuthenticated)
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage(MsgUserNotFound)
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken is a thin delegation to TokenService.Validate so callers
// only need the service package.
func (s *AuthService) ValidateToken(tokenStr string) (auth.Identity, error) {
	id, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("service/auth: %w", err)
	}
	return id, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// parseEmail accepts a bare address ("a@b.c"), not a display-name form.
func parseEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

func gravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?s=200&r=pg&d=mm"
}
