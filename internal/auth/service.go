// Package auth issues and resolves operator sessions. Access is granted
// either by the shared office PIN or by an externally provisioned token;
// either way the rest of the system only ever sees an opaque operator id.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/andamio-erp/andamio-erp/internal/shared"
)

const sessionKeyPrefix = "andamio:session:"

// Session is an issued bearer credential.
type Session struct {
	Token     string    `json:"token"`
	Operator  string    `json:"operador"`
	ExpiresAt time.Time `json:"caducaEn"`
}

// Service wraps authentication rules and session storage.
type Service struct {
	client     *redis.Client
	pinHash    string
	pinUser    string
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService constructs a Service. pinHash is a bcrypt hash of the office
// PIN; pinUser is the operator id PIN logins resolve to.
func NewService(client *redis.Client, pinHash, pinUser string, sessionTTL time.Duration) *Service {
	return &Service{
		client:     client,
		pinHash:    pinHash,
		pinUser:    pinUser,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// LoginPIN validates the office PIN and issues a session.
func (s *Service) LoginPIN(ctx context.Context, pin string) (Session, error) {
	if s.pinHash == "" || pin == "" {
		return Session{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.pinHash), []byte(pin)); err != nil {
		return Session{}, shared.ErrInvalidCredentials
	}
	return s.issue(ctx, s.pinUser)
}

// issue stores a fresh session token for the operator.
func (s *Service) issue(ctx context.Context, operator string) (Session, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, sessionKeyPrefix+token, operator, s.sessionTTL).Err(); err != nil {
		return Session{}, shared.Transient(err)
	}
	return Session{
		Token:     token,
		Operator:  operator,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}, nil
}

// Resolve maps a bearer token to its operator id.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", shared.ErrInvalidCredentials
	}
	operator, err := s.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", shared.ErrInvalidCredentials
	}
	if err != nil {
		return "", shared.Transient(err)
	}
	return operator, nil
}

// Logout removes the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, sessionKeyPrefix+token).Err()
}
