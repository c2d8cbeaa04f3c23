package core

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthProvider verifies a bearer token and resolves it to an identity. The
// call may block on a network round-trip, so implementations must honor ctx.
type AuthProvider interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// AuthClaims is the identity payload carried inside a chathub token.
type AuthClaims struct {
	UID       string `json:"uid"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	EmailHash string `json:"email_hash"`
	jwt.RegisteredClaims
}

// JWTAuthProvider verifies HS256 tokens signed with a shared secret.
type JWTAuthProvider struct {
	secret []byte
}

func NewJWTAuthProvider(secret []byte) *JWTAuthProvider {
	return &JWTAuthProvider{secret: secret}
}

func (p *JWTAuthProvider) Verify(_ context.Context, token string) (*User, error) {
	claims := &AuthClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

	switch {
	case err == nil && parsed.Valid:
		if claims.Username == "" {
			return nil, ErrTokenInvalid
		}
		uid := claims.UID
		if uid == "" {
			uid = uuid.NewString()
		}
		return NewUser(uid, claims.Username, UserProps{
			Role:      claims.Role,
			EmailHash: claims.EmailHash,
		}), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrUnrecognizedToken
	}
}

// NewToken signs an HS256 token carrying the user's identity. Used by
// operator tooling and tests; the hub itself only ever verifies.
func NewToken(user *User, ttl time.Duration, secret []byte) (string, error) {
	claims := &AuthClaims{
		UID:       user.UID,
		Username:  user.Username,
		Role:      user.Role(),
		EmailHash: user.EmailHash(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			Issuer:    "chathub",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
