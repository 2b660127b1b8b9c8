package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken     = errors.New("missing token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingSubject   = errors.New("user id not found in token")
)

// JWTVerifier verifies bearer tokens signed either with RS256 (public key)
// or HS256 (shared secret) and returns the user id claim (user_id, user_uuid or sub).
type JWTVerifier struct {
	pub    *rsa.PublicKey
	secret []byte
}

func NewJWTVerifier(pubPath, secret string) (*JWTVerifier, error) {
	if pubPath != "" {
		b, err := os.ReadFile(pubPath)
		if err != nil {
			return nil, fmt.Errorf("read jwt public key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		return &JWTVerifier{pub: pub}, nil
	}
	if secret == "" {
		return nil, errors.New("jwt: no public key or secret configured")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMalformedToken
	}
	return strings.TrimSpace(token), nil
}

// VerifyToken returns the user id of a valid token.
func (j *JWTVerifier) VerifyToken(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	methods := []string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}
	if j.pub != nil {
		methods = []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS384.Alg(), jwt.SigningMethodRS512.Alg()}
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, j.key, jwt.WithValidMethods(methods))
	if err != nil {
		return "", classify(err)
	}
	if !t.Valid {
		return "", ErrInvalidSignature
	}
	for _, k := range []string{"user_id", "user_uuid", "sub"} {
		if v, ok := claims[k].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrMissingSubject
}

func (j *JWTVerifier) key(_ *jwt.Token) (interface{}, error) {
	if j.pub != nil {
		return j.pub, nil
	}
	return j.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		// bad signature, wrong alg, nbf/iat in the future
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}

// IssueToken mints an HS256 token for local development and tests.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt: secret required to issue tokens")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
