package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"veriflow-backend/internal/models"
)

const denylistPrefix = "auth:denylist:"

// DefaultTokenTTL matches the 7-day expiry the mobile client expects.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims carried in the access token. Subject is the user ID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens. Rdb, when set,
// backs the logout denylist; without it Revoke is a no-op.
type TokenIssuer struct {
	Secret []byte
	TTL    time.Duration
	Rdb    *redis.Client
}

func (t *TokenIssuer) ttl() time.Duration {
	if t.TTL == 0 {
		return DefaultTokenTTL
	}
	return t.TTL
}

// Sign mints a token for the user.
func (t *TokenIssuer) Sign(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl())),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// Verify parses the token, rejects denylisted ones, and returns the
// user ID it was minted for.
func (t *TokenIssuer) Verify(ctx context.Context, tokenString string) (uuid.UUID, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return t.Secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrTokenInvalid
	}
	if t.Rdb != nil && claims.ID != "" {
		n, err := t.Rdb.Exists(ctx, denylistPrefix+claims.ID).Result()
		if err == nil && n > 0 {
			return uuid.Nil, ErrTokenRevoked
		}
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return userID, nil
}

// Revoke denylists the token until its natural expiry.
func (t *TokenIssuer) Revoke(ctx context.Context, tokenString string) error {
	if t.Rdb == nil {
		return nil
	}
	var claims Claims
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims)
	if err != nil || claims.ID == "" {
		return ErrTokenInvalid
	}
	ttl := t.ttl()
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return t.Rdb.Set(ctx, denylistPrefix+claims.ID, "1", ttl).Err()
}
