package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLength is the minimum HMAC secret size in bytes.
const minSecretLength = 32

// Claims is the identity and permission payload carried by a token.
// It is derived from the user's role assignments at issuance time and
// is only corrected on refresh; role changes do not reach live tokens.
type Claims struct {
	Email       string   `json:"email"`
	Username    string   `json:"username"`
	Department  string   `json:"department"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenService signs and verifies bearer tokens. Tokens are compact
// HMAC-signed JWTs so a client cannot forge a claim payload.
type TokenService interface {
	Sign(claims *Claims) (string, error)
	Verify(tokenString string) (*Claims, error)
	Expiry() time.Duration
}

type tokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService creates a TokenService. It returns nil if the secret
// is shorter than 32 bytes.
func NewTokenService(secret string, expiry time.Duration) TokenService {
	if len(secret) < minSecretLength {
		return nil
	}
	return &tokenService{secret: []byte(secret), expiry: expiry}
}

// Sign stamps issued-at/expiry onto the claims and returns the signed
// compact encoding.
func (s *tokenService) Sign(claims *Claims) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.expiry))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify decodes the token, checks the signature and expiry, and
// returns the embedded claim set. Expired tokens yield ErrTokenExpired;
// every other parse or signature failure yields ErrTokenMalformed.
func (s *tokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (s *tokenService) Expiry() time.Duration {
	return s.expiry
}
