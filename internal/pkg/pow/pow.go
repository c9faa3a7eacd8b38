/*
Package pow implements the proof-of-work gate placed in front of signup.

A client fetches a nonce, searches for a counter such that
sha256(nonce + counter) starts with `difficulty` hex zeros, and exchanges the
solution for a short-lived proof token sent back in the X-PoW-Token header.
*/
package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/resp"
)

const (
	// TokenHeaderKey is the HTTP header key used by the client to send the Proof Token.
	TokenHeaderKey = "X-PoW-Token"

	// ProofTokenDuration is the validity period for the Proof Token issued after successful PoW validation.
	ProofTokenDuration = 30 * time.Second

	// NonceExpiryDuration is the validity period for the challenge Nonce.
	NonceExpiryDuration = 5 * time.Minute
)

var (
	ErrNonceInvalid  = errors.New("nonce expired or invalid")
	ErrProofTooWeak  = errors.New("proof does not meet difficulty requirement")
	ErrNonceConsumed = errors.New("nonce consumed by concurrent request")
	ErrTokenInvalid  = errors.New("proof token missing or expired")
)

// PoWManager is responsible for managing the lifecycle of PoW challenges and Proof Tokens.
type PoWManager struct {
	difficulty int

	nonceStore map[string]time.Time
	tokenStore map[string]time.Time

	mu sync.Mutex
}

// NewPoWManager creates a manager for the given difficulty. Call Run to
// start expiring stale entries.
func NewPoWManager(difficulty int) *PoWManager {
	return &PoWManager{
		difficulty: difficulty,
		nonceStore: make(map[string]time.Time),
		tokenStore: make(map[string]time.Time),
	}
}

// Difficulty returns the number of leading hex zeros required.
func (m *PoWManager) Difficulty() int { return m.difficulty }

// GenerateNonce creates and stores a new challenge nonce.
func (m *PoWManager) GenerateNonce() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := uuid.NewString()
	m.nonceStore[nonce] = time.Now().Add(NonceExpiryDuration)
	return nonce
}

// Meets reports whether counter solves nonce at difficulty.
func Meets(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// Solve searches for the smallest decimal counter solving nonce. It is what a
// client does; the server never calls it.
func Solve(ctx context.Context, nonce string, difficulty int) (string, error) {
	for i := 0; ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}

		counter := strconv.Itoa(i)
		if Meets(nonce, counter, difficulty) {
			return counter, nil
		}
	}
}

// ValidateProof checks counter against an issued nonce and, on success,
// consumes the nonce and returns a proof token.
func (m *PoWManager) ValidateProof(nonce, counter string) (string, error) {
	m.mu.Lock()
	expiryTime, ok := m.nonceStore[nonce]
	m.mu.Unlock()

	if !ok || time.Now().After(expiryTime) {
		return "", ErrNonceInvalid
	}

	if !Meets(nonce, counter, m.difficulty) {
		return "", ErrProofTooWeak
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, stillExists := m.nonceStore[nonce]; !stillExists {
		return "", ErrNonceConsumed
	}
	delete(m.nonceStore, nonce)

	token := uuid.NewString()
	m.tokenStore[token] = time.Now().Add(ProofTokenDuration)
	return token, nil
}

// ConsumeProofToken validates the request's proof token and invalidates it,
// so one solved challenge admits exactly one request.
func (m *PoWManager) ConsumeProofToken(r *http.Request) error {
	token := r.Header.Get(TokenHeaderKey)
	if token == "" {
		return ErrTokenInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiryTime, ok := m.tokenStore[token]
	if !ok {
		return ErrTokenInvalid
	}
	delete(m.tokenStore, token)

	if time.Now().After(expiryTime) {
		return ErrTokenInvalid
	}

	return nil
}

// Middleware rejects requests without a valid proof token.
func (m *PoWManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.ConsumeProofToken(r); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Run removes expired nonces and tokens every interval until ctx is cancelled.
func (m *PoWManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.expire(now)
		}
	}
}

func (m *PoWManager) expire(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for nonce, expiry := range m.nonceStore {
		if now.After(expiry) {
			delete(m.nonceStore, nonce)
		}
	}

	for token, expiry := range m.tokenStore {
		if now.After(expiry) {
			delete(m.tokenStore, token)
		}
	}
}
