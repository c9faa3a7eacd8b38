package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/app/db/dbtest"
	"duochat/internal/app/message"
	"duochat/internal/app/presence"
	"duochat/internal/configs"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/pow"
	"duochat/internal/pkg/resp"
)

type fakeStorage struct {
	mu      sync.Mutex
	uploads []string
	deleted []string
}

func (s *fakeStorage) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.Copy(io.Discard, body)
	s.uploads = append(s.uploads, key)
	return "https://cdn.test/" + key, nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) KeyFromURL(url string) string {
	key, _ := strings.CutPrefix(url, "https://cdn.test/")
	if key == url {
		return ""
	}
	return key
}

type testApp struct {
	server  *httptest.Server
	hub     *presence.Hub
	store   *fakeStorage
	queries *dbtest.Fake
}

func newTestApp(t *testing.T, powDifficulty int) *testApp {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment:    configs.EnvDevelopment,
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"http://localhost:5173"},
	}

	queries := dbtest.New()
	store := &fakeStorage{}
	hub := presence.NewHub(presence.PresenceOnChange)

	deps := &AppDeps{
		Hub:      hub,
		Config:   cfg,
		Storage:  store,
		DB:       queries,
		Messages: message.NewService(queries, store, hub),
	}
	if powDifficulty >= 0 {
		deps.Pow = pow.NewPoWManager(powDifficulty)
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(Router(ctx, deps))

	t.Cleanup(func() {
		hub.Shutdown()
		server.Close()
		cancel()
	})

	return &testApp{server: server, hub: hub, store: store, queries: queries}
}

type envelope = resp.Envelope

type session struct {
	t      *testing.T
	app    *testApp
	client *http.Client
}

func (a *testApp) newSession(t *testing.T) *session {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &session{t: t, app: a, client: &http.Client{Jar: jar}}
}

func (s *session) do(method, path string, body any, headers ...string) (int, envelope) {
	s.t.Helper()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(buf)
	}

	r, err := http.NewRequest(method, s.app.server.URL+path, rdr)
	require.NoError(s.t, err)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}

	res, err := s.client.Do(r)
	require.NoError(s.t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

type wireUser struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

func (s *session) signup(name, email string) wireUser {
	s.t.Helper()

	status, env := s.do(http.MethodPost, "/api/auth/signup", SignupInput{FullName: name, Email: email, Password: "secret123"})
	require.Equal(s.t, http.StatusCreated, status, env.Message)

	var u wireUser
	require.NoError(s.t, json.Unmarshal(env.Data, &u))
	return u
}

func (s *session) dial() *websocket.Conn {
	s.t.Helper()

	url := "ws" + strings.TrimPrefix(s.app.server.URL, "http") + "/ws"
	dialer := websocket.Dialer{Jar: s.client.Jar, HandshakeTimeout: time.Second}
	conn, _, err := dialer.Dial(url, nil)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readUntil(t *testing.T, conn *websocket.Conn, kind string) wireEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == kind {
			return ev
		}
	}
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t, -1)
	alice := app.newSession(t)

	u := alice.signup("Alice", "alice@example.com")
	assert.Equal(t, "Alice", u.FullName)
	assert.NotEmpty(t, u.ID)

	status, env := alice.do(http.MethodGet, "/api/auth/check", nil)
	require.Equal(t, http.StatusOK, status)
	var checked wireUser
	require.NoError(t, json.Unmarshal(env.Data, &checked))
	assert.Equal(t, u, checked)

	status, env = alice.do(http.MethodPost, "/api/auth/signup", SignupInput{FullName: "A", Email: "a2@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrAlreadyLoggedIn, env.Code)

	status, _ = alice.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = alice.do(http.MethodGet, "/api/auth/check", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errs.ErrUnauthorized, env.Code)

	status, env = alice.do(http.MethodPost, "/api/auth/login", LoginInput{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrInvalidCredentials, env.Code)

	status, _ = alice.do(http.MethodPost, "/api/auth/login", LoginInput{Email: "ALICE@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = alice.do(http.MethodGet, "/api/auth/check", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSignupValidation(t *testing.T) {
	app := newTestApp(t, -1)
	app.newSession(t).signup("Taken", "taken@example.com")

	cases := []struct {
		name string
		in   SignupInput
		code int
	}{
		{"missing name", SignupInput{Email: "x@example.com", Password: "secret123"}, errs.ErrMissingFields},
		{"short password", SignupInput{FullName: "X", Email: "x@example.com", Password: "12345"}, errs.ErrInvalidPassword},
		{"bad email", SignupInput{FullName: "X", Email: "not-an-email", Password: "secret123"}, errs.ErrInvalidEmail},
		{"duplicate email", SignupInput{FullName: "X", Email: "Taken@example.com", Password: "secret123"}, errs.ErrEmailAlreadyExists},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := app.newSession(t).do(http.MethodPost, "/api/auth/signup", tc.in)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tc.code, env.Code)
		})
	}
}

func TestSignupRequiresProofOfWork(t *testing.T) {
	app := newTestApp(t, 1)
	s := app.newSession(t)

	status, env := s.do(http.MethodPost, "/api/auth/signup", SignupInput{FullName: "A", Email: "a@example.com", Password: "secret123"})
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, errs.ErrPowChallengeRequired, env.Code)

	status, env = s.do(http.MethodGet, "/api/auth/challenge", nil)
	require.Equal(t, http.StatusOK, status)
	var challenge struct {
		Nonce      string `json:"nonce"`
		Difficulty int    `json:"difficulty"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &challenge))

	counter, err := pow.Solve(context.Background(), challenge.Nonce, challenge.Difficulty)
	require.NoError(t, err)

	status, env = s.do(http.MethodPost, "/api/auth/challenge/verify", VerifyChallengeInput{Nonce: challenge.Nonce, Counter: counter})
	require.Equal(t, http.StatusOK, status)
	var proof struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &proof))

	status, _ = s.do(http.MethodPost, "/api/auth/signup", SignupInput{FullName: "A", Email: "a@example.com", Password: "secret123"}, pow.TokenHeaderKey, proof.Token)
	assert.Equal(t, http.StatusCreated, status)
}

func TestUpdateProfileReplacesAvatar(t *testing.T) {
	app := newTestApp(t, -1)
	s := app.newSession(t)
	s.signup("Alice", "alice@example.com")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	status, env := s.do(http.MethodPut, "/api/auth/update-profile", UpdateProfileInput{ProfilePic: dataURL})
	require.Equal(t, http.StatusOK, status, env.Message)
	var first wireUser
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.True(t, strings.HasPrefix(first.ProfilePic, "https://cdn.test/avatars/"+first.ID+"/"))

	status, _ = s.do(http.MethodPut, "/api/auth/update-profile", UpdateProfileInput{ProfilePic: dataURL})
	require.Equal(t, http.StatusOK, status)

	app.store.mu.Lock()
	defer app.store.mu.Unlock()
	assert.Len(t, app.store.uploads, 2)
	assert.Equal(t, []string{app.store.uploads[0]}, app.store.deleted)

	status, env = s.do(http.MethodPut, "/api/auth/update-profile", UpdateProfileInput{ProfilePic: "data:text/plain;base64,aGk="})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, errs.ErrImageInvalid, env.Code)
}

func TestMessagesRequireAuth(t *testing.T) {
	app := newTestApp(t, -1)

	status, env := app.newSession(t).do(http.MethodGet, "/api/messages/users", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errs.ErrUnauthorized, env.Code)
}

func TestLiveMessageAndTypingFlow(t *testing.T) {
	app := newTestApp(t, -1)
	aliceS := app.newSession(t)
	bobS := app.newSession(t)
	alice := aliceS.signup("Alice", "alice@example.com")
	bob := bobS.signup("Bob", "bob@example.com")

	bobConn := bobS.dial()
	readUntil(t, bobConn, string(presence.EventOnlineUsers))

	aliceConn := aliceS.dial()
	ev := readUntil(t, bobConn, string(presence.EventOnlineUsers))
	var online []string
	require.NoError(t, json.Unmarshal(ev.Payload, &online))
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, online)

	status, env := aliceS.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	var health struct {
		OnlineUsers int `json:"onlineUsers"`
		Connections int `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, 2, health.OnlineUsers)
	assert.Equal(t, 2, health.Connections)

	require.NoError(t, aliceConn.WriteJSON(map[string]any{
		"type":    "typing",
		"payload": map[string]string{"receiverId": bob.ID, "senderId": "spoofed"},
	}))
	ev = readUntil(t, bobConn, string(presence.EventTyping))
	assert.JSONEq(t, `{"senderId":"`+alice.ID+`"}`, string(ev.Payload))

	status, env = aliceS.do(http.MethodPost, "/api/messages/send/"+bob.ID, message.SendInput{Text: "hello bob"})
	require.Equal(t, http.StatusCreated, status, env.Message)

	ev = readUntil(t, bobConn, string(presence.EventNewMessage))
	var pushed message.Message
	require.NoError(t, json.Unmarshal(ev.Payload, &pushed))
	assert.Equal(t, "hello bob", pushed.Text)
	assert.Equal(t, alice.ID, pushed.SenderID)

	status, env = bobS.do(http.MethodGet, "/api/messages/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var convo []message.Message
	require.NoError(t, json.Unmarshal(env.Data, &convo))
	require.Len(t, convo, 1)
	assert.Equal(t, pushed.ID, convo[0].ID)

	status, env = bobS.do(http.MethodGet, "/api/messages/users", nil)
	require.Equal(t, http.StatusOK, status)
	var contacts []wireUser
	require.NoError(t, json.Unmarshal(env.Data, &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, alice.ID, contacts[0].ID)

	require.NoError(t, aliceConn.Close())
	ev = readUntil(t, bobConn, string(presence.EventOnlineUsers))
	require.NoError(t, json.Unmarshal(ev.Payload, &online))
	assert.Equal(t, []string{bob.ID}, online)
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	app := newTestApp(t, -1)

	url := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?userId=dev-user", nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readUntil(t, conn, string(presence.EventOnlineUsers))
	assert.JSONEq(t, `["dev-user"]`, string(ev.Payload))
}
