package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

const (
	MinPasswordLength = 6
	MaxNameLength     = 100
)

var (
	validThemes    = map[string]bool{"light": true, "dark": true}
	validLanguages = map[string]bool{"en": true, "es": true, "pl": true, "ru": true}
)

// GitHubExchanger is the part of auth.GitHubProvider the service needs.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthService registers and signs users in and resolves tokens into actors.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	github    GitHubExchanger
	logger    *slog.Logger
}

// NewAuthService wires the service. github may be nil when GitHub sign-in
// is not configured.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	github GitHubExchanger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		github:    github,
		logger:    logger,
	}
}

// AuthResult bundles the user and a freshly issued token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, storageError(s.logger, "creating user", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks credentials. Unknown email and wrong password give the
// same Unauthenticated error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, storageError(s.logger, "loading user", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.Unauthenticated("invalid email or password")
		}
		return nil, storageError(s.logger, "verifying password", err)
	}
	if user.Status == model.UserBlocked {
		return nil, apperror.Forbidden("account is blocked")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (s *AuthService) GitHubEnabled() bool {
	return s.github != nil
}

func (s *AuthService) GitHubAuthURL(state string) string {
	return s.github.AuthURL(state)
}

// LoginGitHub completes the OAuth callback: the GitHub identity is linked
// to the account with the same email, or a new account is created.
func (s *AuthService) LoginGitHub(ctx context.Context, code string) (*AuthResult, error) {
	if s.github == nil {
		return nil, apperror.NotFound("auth provider", "github")
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	gh, err := s.github.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("GitHub exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Unauthenticated("GitHub sign-in failed")
	}

	ghID := gh.ID
	user := &model.User{Name: gh.DisplayName(), Email: normalizeEmail(gh.Email), GitHubID: &ghID}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, storageError(s.logger, "upserting GitHub user", err)
	}
	if user.Status == model.UserBlocked {
		return nil, apperror.Forbidden("account is blocked")
	}

	s.logger.Info("user authenticated via GitHub", slog.String("userID", user.ID), slog.String("login", gh.Login))
	return s.issue(user)
}

// ResolveActor loads the token's user. Blocked users are Forbidden.
func (s *AuthService) ResolveActor(ctx context.Context, userID string) (*model.Actor, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageError(s.logger, "resolving actor", err)
	}
	if user.Status == model.UserBlocked {
		return nil, apperror.Forbidden("account is blocked")
	}
	return user.Actor(), nil
}

func (s *AuthService) Me(ctx context.Context, actor *model.Actor) (*model.User, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	user, err := s.users.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, storageError(s.logger, "loading user", err)
	}
	return user, nil
}

// UpdatePreferences changes theme and/or language; nil leaves a value alone.
func (s *AuthService) UpdatePreferences(ctx context.Context, actor *model.Actor, theme, language *string) (*model.User, error) {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}

	if theme != nil {
		if !validThemes[*theme] {
			return nil, apperror.ValidationFailed("theme", "theme must be light or dark")
		}
		user.Theme = *theme
	}
	if language != nil {
		if !validLanguages[*language] {
			return nil, apperror.ValidationFailed("language", "unsupported language")
		}
		user.Language = *language
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storageError(s.logger, "updating preferences", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, storageError(s.logger, "issuing token", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
