package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/innohedge/console/internal/apiclient"
	"github.com/innohedge/console/internal/apperror"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// sessionTokenBytes is the number of random bytes in a session token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionTokenBytes = 32

// AuthAPI is the part of the backend API used for authentication. It is
// satisfied by *apiclient.Client.
type AuthAPI interface {
	Login(ctx context.Context, req apiclient.LoginRequest) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// AuthService defines the business logic contract for authentication.
// Handlers call these methods; they never touch Redis or the API directly.
type AuthService interface {
	// Login checks the credentials with the backend and opens a session.
	Login(ctx context.Context, input LoginInput) (*Session, error)

	// ValidateSession returns the live session for a session ID.
	ValidateSession(ctx context.Context, id string) (*Session, error)

	// DestroySession deletes a session. Deleting a missing session is not an error.
	DestroySession(ctx context.Context, id string) error

	// ForgotPassword asks the backend to email a reset link.
	ForgotPassword(ctx context.Context, email string) error

	// ResetPassword sets a new password with a reset token.
	ResetPassword(ctx context.Context, token, password string) error

	// TTL returns how long a session lives.
	TTL(rememberMe bool) time.Duration
}

// authService implements AuthService with the backend API and Redis sessions.
type authService struct {
	api         AuthAPI
	redis       *redis.Client
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(api AuthAPI, rdb *redis.Client, sessionTTL, rememberTTL time.Duration) AuthService {
	return &authService{
		api:         api,
		redis:       rdb,
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
	}
}

// TTL returns the session lifetime for the remember-me choice.
func (s *authService) TTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.rememberTTL
	}
	return s.sessionTTL
}

// Login exchanges the credentials for a backend token and stores it in a
// new session. Backend rejections come back as *apiclient.Error so the
// handler can show the backend's message.
func (s *authService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperror.NewValidation(msgLoginRequired)
	}

	apiToken, err := s.api.Login(ctx, apiclient.LoginRequest{
		Email:      email,
		Password:   input.Password,
		RememberMe: input.RememberMe,
	})
	if err != nil {
		slog.Info("login rejected", slog.String("email", email), slog.Any("error", err))
		return nil, err
	}

	session := &Session{
		APIToken:   apiToken,
		Email:      email,
		RememberMe: input.RememberMe,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.createSession(ctx, session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("admin logged in", slog.String("email", email), slog.Bool("remember_me", input.RememberMe))
	return session, nil
}

// ValidateSession looks up a session in Redis and returns it if it exists
// and hasn't expired.
func (s *authService) ValidateSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}

	data, err := s.redis.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session from Redis: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}
	if session.APIToken == "" {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	session.ID = id
	return &session, nil
}

// DestroySession removes a session from Redis, logging the admin out.
func (s *authService) DestroySession(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session from Redis: %w", err))
	}
	return nil
}

// ForgotPassword forwards the reset request to the backend.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperror.NewValidation(msgEmailRequired)
	}
	return s.api.ForgotPassword(ctx, email)
}

// ResetPassword forwards the new password to the backend.
func (s *authService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return apperror.NewValidation(msgResetLinkBroken)
	}
	return s.api.ResetPassword(ctx, token, password)
}

// createSession generates a session ID and stores session under it with the
// TTL matching its remember-me choice.
func (s *authService) createSession(ctx context.Context, session *Session) error {
	id, err := generateSessionToken()
	if err != nil {
		return fmt.Errorf("generating session token: %w", err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if err := s.redis.Set(ctx, sessionKeyPrefix+id, data, s.TTL(session.RememberMe)).Err(); err != nil {
		return fmt.Errorf("storing session in Redis: %w", err)
	}
	session.ID = id
	return nil
}

// generateSessionToken creates a cryptographically random hex-encoded token.
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
