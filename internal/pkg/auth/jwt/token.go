package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// UserIdentityExpiration matches the lifetime of the session cookie.
	UserIdentityExpiration = 7 * 24 * time.Hour

	// TokenIssuer is written to iss and required when parsing.
	TokenIssuer = "duochat-server"
)

var (
	// ErrInvalidToken covers every rejection other than expiry: bad signature,
	// foreign issuer, missing identity.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for a well-formed token past its exp.
	ErrTokenExpired = errors.New("token expired")

	errEmptySecret = errors.New("jwt secret is empty")
)

// GenerateToken signs payload with HS256. The user ID doubles as the subject
// so the token names its owner even to readers that ignore private claims.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	if secretKey == "" {
		return "", errEmptySecret
	}
	if payload.ID == "" {
		return "", fmt.Errorf("%w: payload has no user id", ErrInvalidToken)
	}

	now := time.Now()
	payload.StandardClaims = jwt.StandardClaims{
		Subject:   payload.ID,
		Issuer:    TokenIssuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(duration).Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte(secretKey))
}

// ParseToken verifies tokenString and returns its payload. Only HS256 tokens
// issued by this server for a non-empty identity are accepted.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	if secretKey == "" {
		return nil, errEmptySecret
	}

	claims := &Payload{}
	keyFunc := func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}

	if _, err := jwt.ParseWithClaims(tokenString, claims, keyFunc); err != nil {
		var verr *jwt.ValidationError
		if errors.As(err, &verr) && verr.Errors == jwt.ValidationErrorExpired {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	switch {
	case claims.ID == "":
		return nil, fmt.Errorf("%w: no user id", ErrInvalidToken)
	case !claims.VerifyIssuer(TokenIssuer, true):
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	case claims.Subject != "" && claims.Subject != claims.ID:
		return nil, fmt.Errorf("%w: subject does not match user id", ErrInvalidToken)
	}

	return claims, nil
}
