package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
	"duochat/internal/pkg/pow"
	"duochat/internal/pkg/resp"
)

// APIError is a non-success envelope returned by the REST API.
type APIError = resp.Failure

// HTTPMessageAPI is a REST client for the auth and message endpoints. It
// keeps the session cookie in its jar, so the same jar can be handed to
// DialSocket.
type HTTPMessageAPI struct {
	baseURL string
	client  *http.Client
}

var _ MessageAPI = (*HTTPMessageAPI)(nil)

// NewHTTPMessageAPI returns a client for the server at baseURL (e.g. "http://localhost:5001").
func NewHTTPMessageAPI(baseURL string) (*HTTPMessageAPI, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &HTTPMessageAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Jar: jar},
	}, nil
}

// Jar returns the cookie jar holding the session.
func (a *HTTPMessageAPI) Jar() http.CookieJar {
	return a.client.Jar
}

// SocketURL returns the websocket URL of the live channel.
func (a *HTTPMessageAPI) SocketURL() string {
	if rest, ok := strings.CutPrefix(a.baseURL, "https://"); ok {
		return "wss://" + rest + "/ws"
	}
	return "ws://" + strings.TrimPrefix(a.baseURL, "http://") + "/ws"
}

func (a *HTTPMessageAPI) do(ctx context.Context, method, path string, body any, out any, header http.Header) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}

	r, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		r.Header[k] = v
	}

	res, err := a.client.Do(r)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	env, err := resp.Decode(res.Body, res.StatusCode)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return err
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	return env.Into(out)
}

// Login signs in and stores the session cookie.
func (a *HTTPMessageAPI) Login(ctx context.Context, email, password string) (user.User, error) {
	var u user.User
	err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &u, nil)
	return u, err
}

// Signup creates an account and stores the session cookie. When the server
// gates signup behind proof-of-work the challenge is solved first.
func (a *HTTPMessageAPI) Signup(ctx context.Context, fullName, email, password string) (user.User, error) {
	body := map[string]string{"fullName": fullName, "email": email, "password": password}

	var u user.User
	err := a.do(ctx, http.MethodPost, "/api/auth/signup", body, &u, nil)

	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		return u, err
	}

	token, err := a.solveChallenge(ctx)
	if err != nil {
		return user.User{}, err
	}

	err = a.do(ctx, http.MethodPost, "/api/auth/signup", body, &u, http.Header{pow.TokenHeaderKey: []string{token}})
	return u, err
}

func (a *HTTPMessageAPI) solveChallenge(ctx context.Context) (string, error) {
	var challenge struct {
		Nonce      string `json:"nonce"`
		Difficulty int    `json:"difficulty"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/auth/challenge", nil, &challenge, nil); err != nil {
		return "", fmt.Errorf("fetch challenge: %w", err)
	}

	counter, err := pow.Solve(ctx, challenge.Nonce, challenge.Difficulty)
	if err != nil {
		return "", err
	}

	var proof struct {
		Token string `json:"token"`
	}
	err = a.do(ctx, http.MethodPost, "/api/auth/challenge/verify", map[string]string{"nonce": challenge.Nonce, "counter": counter}, &proof, nil)
	if err != nil {
		return "", fmt.Errorf("verify challenge: %w", err)
	}
	return proof.Token, nil
}

// Check returns the signed-in user.
func (a *HTTPMessageAPI) Check(ctx context.Context) (user.User, error) {
	var u user.User
	err := a.do(ctx, http.MethodGet, "/api/auth/check", nil, &u, nil)
	return u, err
}

// Contacts lists every other user.
func (a *HTTPMessageAPI) Contacts(ctx context.Context) ([]user.User, error) {
	var users []user.User
	err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users, nil)
	return users, err
}

// Conversation returns the messages exchanged with peerID, oldest first.
func (a *HTTPMessageAPI) Conversation(ctx context.Context, peerID string) ([]message.Message, error) {
	var msgs []message.Message
	err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(peerID), nil, &msgs, nil)
	return msgs, err
}

// SendMessage implements MessageAPI.
func (a *HTTPMessageAPI) SendMessage(ctx context.Context, receiverID string, in message.SendInput) (message.Message, error) {
	var msg message.Message
	err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiverID), in, &msg, nil)
	return msg, err
}
