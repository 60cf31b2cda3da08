// Package auth issues and verifies identity tokens and guards protected routes.
//
// TOKEN FLOW:
//  1. A user registers or logs in (password or GitHub) and receives a token.
//  2. The client sends it back on every request in the x-auth-token header.
//  3. RequireAuth verifies it and puts the caller's Identity in the context.
//  4. Services receive that Identity as an explicit argument.
//
// Tokens are HS256 JWTs:
//
//	HEADER.PAYLOAD.SIGNATURE
//	payload → {"sub":"<userID>","iat":1700000000,"iss":"devconnect"[,"exp":...]}
//
// The server verifies them with nothing but the secret. Rotating the secret
// invalidates every token issued before the rotation.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "devconnect"

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

// ErrInvalidToken is returned by Validate for every kind of rejection:
// empty, malformed, bad signature, wrong algorithm, expired, no subject.
// Callers only need errors.Is(err, ErrInvalidToken); the wrapped cause is
// for logs.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the authenticated principal decoded from a verified token.
type Identity struct {
	UserID   string
	IssuedAt time.Time
}

// TokenService handles JWT creation and validation.
//
// ttl is the lifetime stamped into new tokens. Zero means tokens carry no
// "exp" claim and stay valid until the secret is rotated.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. Example secret: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	if ttl < 0 {
		return nil, errors.New("auth: token TTL must not be negative")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims embeds jwt.RegisteredClaims. "sub" holds the user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for userID using the service's configured TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(userID, s.ttl)
}

// GenerateWithDuration signs a token that expires after d. A negative d
// produces an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	if d == 0 {
		return "", errors.New("auth: token duration must not be zero")
	}
	return s.sign(userID, d)
}

func (s *TokenService) sign(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot sign a token without a user ID")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   issuer,
		},
	}
	if ttl != 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the Identity it binds.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature matches the secret
//   - Algorithm is HS256 (blocks "alg":"none" and algorithm confusion)
//   - Issuer is ours
//   - Not expired, when an "exp" claim is present
//
// When the service has a TTL, "exp" is required as well, so a token minted
// before expiry was switched on cannot live forever.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
	}
	if s.ttl > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	id := Identity{UserID: c.Subject}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	return id, nil
}
