package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func issue(t *testing.T, id string, d time.Duration) string {
	t.Helper()

	token, err := GenerateToken(&Payload{ID: id, Email: "a@example.com"}, secret, d)
	require.NoError(t, err)
	return token
}

func TestGenerateAndParse(t *testing.T) {
	token := issue(t, "user-1", time.Hour)

	payload, err := ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", payload.ID)
	assert.Equal(t, "a@example.com", payload.Email)
	assert.Equal(t, TokenIssuer, payload.Issuer)

	assert.Equal(t, "user-1", payload.Subject)

	_, err = ParseToken(token, "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(issue(t, "user-1", -time.Minute), secret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	sign := func(method jwt.SigningMethod, claims jwt.Claims) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"other issuer": sign(jwt.SigningMethodHS256, &Payload{
			StandardClaims: jwt.StandardClaims{Issuer: "someone-else", ExpiresAt: exp},
			ID:             "user-1",
		}),
		"no user id": sign(jwt.SigningMethodHS256, &Payload{
			StandardClaims: jwt.StandardClaims{Issuer: TokenIssuer, ExpiresAt: exp},
		}),
		"subject mismatch": sign(jwt.SigningMethodHS256, &Payload{
			StandardClaims: jwt.StandardClaims{Issuer: TokenIssuer, Subject: "user-2", ExpiresAt: exp},
			ID:             "user-1",
		}),
		"hs512": sign(jwt.SigningMethodHS512, &Payload{
			StandardClaims: jwt.StandardClaims{Issuer: TokenIssuer, ExpiresAt: exp},
			ID:             "user-1",
		}),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token, secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestEmptySecretOrIdentityRefused(t *testing.T) {
	_, err := GenerateToken(&Payload{ID: "user-1"}, "", time.Hour)
	assert.Error(t, err)

	_, err = GenerateToken(&Payload{}, secret, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(issue(t, "user-1", time.Hour), "")
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r), "cookie wins over header")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(r))
}

func TestMiddlewareChain(t *testing.T) {
	var seen *Payload
	h := IdentityExtractorMiddleware(secret)(RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPayloadFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: issue(t, "user-2", time.Hour)})
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-2", seen.ID)
	assert.Equal(t, "user-2", IdentityFromRequest(r, secret))
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetAuthCookie(rec, "tok", true)
	ClearAuthCookie(rec, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
	assert.Equal(t, int(UserIdentityExpiration/time.Second), cookies[0].MaxAge)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
