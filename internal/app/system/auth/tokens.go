package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dalemusser/voluntahub/internal/domain/models"
)

const tokenIssuer = "voluntahub"

// ErrInvalidToken is returned by Verify for any token that fails signature,
// expiry, or claim checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// DefaultTokenTTL is used when NewTokenIssuer receives a non-positive ttl.
const DefaultTokenTTL = time.Hour

// NewTokenIssuer returns an issuer signing with secret.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (ti *TokenIssuer) TTL() time.Duration { return ti.ttl }

// Issue signs a token for id and returns it with its expiry.
func (ti *TokenIssuer) Issue(id Identity) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := Claims{
		UserID: id.ID,
		Email:  id.Email,
		Name:   id.Name,
		Role:   string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses and validates token, returning the identity it carries.
func (ti *TokenIssuer) Verify(token string) (*Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	role, ok := models.ParseRole(claims.Role)
	if !ok || claims.Email == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		ID:        claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
