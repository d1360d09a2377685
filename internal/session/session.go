// Package session restores member sessions from tokens issued by the SACCO
// backend. The session travels explicitly through context.Context.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	customError "github.com/segyhp/sacco-portal/pkg/errors"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
	ErrRevoked      = errors.New("session has been cleared")
)

// Session is the authenticated member behind a request
type Session struct {
	Token     string
	TokenID   string
	MemberID  string
	Email     string
	ExpiresAt time.Time
}

// Claims represents the custom JWT claims for a member session.
type Claims struct {
	MemberID string `json:"member_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// RevocationStore remembers cleared token ids until they would have expired anyway
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Manager struct {
	secretKey []byte
	issuer    string
	store     RevocationStore
	now       func() time.Time
}

func NewManager(secretKey, issuer string, store RevocationStore) *Manager {
	return &Manager{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		store:     store,
		now:       time.Now,
	}
}

// Issue signs a token for a member. The portal never logs members in itself;
// this exists for the backend side of local setups and for tests.
func (m *Manager) Issue(memberID, email string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		MemberID: memberID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   memberID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Restore validates a token and rebuilds the session it carries.
func (m *Manager) Restore(ctx context.Context, tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, customError.WrapUnauthorized(ErrMissingToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, customError.WrapUnauthorized(fmt.Errorf("%w: %v", ErrInvalidToken, err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MemberID == "" || claims.ExpiresAt == nil {
		return nil, customError.WrapUnauthorized(ErrInvalidToken)
	}

	if claims.ID != "" {
		revoked, err := m.store.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, customError.WrapCacheError(err)
		}
		if revoked {
			return nil, customError.WrapUnauthorized(ErrRevoked)
		}
	}

	return &Session{
		Token:     tokenString,
		TokenID:   claims.ID,
		MemberID:  claims.MemberID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Clear ends a session by revoking its token id for the rest of its lifetime.
func (m *Manager) Clear(ctx context.Context, s *Session) error {
	if s == nil || s.TokenID == "" {
		return nil
	}

	ttl := s.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}

	if err := m.store.Revoke(ctx, s.TokenID, ttl); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

type contextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// RedisRevocationStore keeps revoked token ids as expiring redis keys
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "session:revoked:"}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+tokenID, 1, ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
