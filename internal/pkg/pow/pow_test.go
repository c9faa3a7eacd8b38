package pow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeRoundTrip(t *testing.T) {
	m := NewPoWManager(2)
	nonce := m.GenerateNonce()

	counter, err := Solve(context.Background(), nonce, m.Difficulty())
	require.NoError(t, err)
	require.True(t, Meets(nonce, counter, 2))

	token, err := m.ValidateProof(nonce, counter)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = m.ValidateProof(nonce, counter)
	assert.ErrorIs(t, err, ErrNonceInvalid, "a nonce is single use")

	r := httptest.NewRequest(http.MethodPost, "/signup", nil)
	r.Header.Set(TokenHeaderKey, token)
	require.NoError(t, m.ConsumeProofToken(r))
	assert.ErrorIs(t, m.ConsumeProofToken(r), ErrTokenInvalid, "a proof token is single use")
}

func TestValidateProofRejects(t *testing.T) {
	m := NewPoWManager(64)
	nonce := m.GenerateNonce()

	_, err := m.ValidateProof("unknown", "0")
	assert.ErrorIs(t, err, ErrNonceInvalid)

	_, err = m.ValidateProof(nonce, "0")
	assert.ErrorIs(t, err, ErrProofTooWeak)
}

func TestMiddleware(t *testing.T) {
	m := NewPoWManager(0)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token, err := m.ValidateProof(m.GenerateNonce(), "")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(TokenHeaderKey, token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestExpire(t *testing.T) {
	m := NewPoWManager(0)
	m.GenerateNonce()
	_, err := m.ValidateProof(m.GenerateNonce(), "")
	require.NoError(t, err)

	m.expire(time.Now().Add(NonceExpiryDuration + time.Second))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.nonceStore)
	assert.Empty(t, m.tokenStore)
}

func TestSolveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Solve(ctx, "nonce", 64)
	assert.ErrorIs(t, err, context.Canceled)
}
