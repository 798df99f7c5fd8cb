package identity

import (
	"errors"
	"fmt"
	"time"

	"objektbetreuer-backend/internal/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 12 * time.Hour

var ErrInvalidToken = apperr.New(apperr.KindAuthentication, "invalid_token", "Invalid or expired token")

// TokenClaims are the claims of a mobile access token. Subject is the principal id.
type TokenClaims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 bearer tokens for clients that cannot
// keep a cookie session.
type TokenService struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue returns a signed access token for principal and its expiry.
func (s *TokenService) Issue(principal uuid.UUID, email string) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := &TokenClaims{
		Email: email,
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses token and returns the principal it was issued for.
func (s *TokenService) Validate(token string) (uuid.UUID, error) {
	if len(s.Secret) == 0 || token == "" {
		return uuid.Nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	// a token without exp never expires; none of ours lack one
	if !ok || claims.Type != "access" || claims.ExpiresAt == nil {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
