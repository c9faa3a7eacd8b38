/*
Package resp owns the JSON envelope spoken by every REST endpoint.

The server side writes it with the Respond helpers; Go clients read it back
with Decode, which turns non-success envelopes into *Failure errors.

	{"code": 0, "message": "success", "data": {...}}
*/
package resp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// CodeOK is the business code of every successful response.
const CodeOK = 0

// JSONResponse is the envelope as written by the server.
type JSONResponse struct {
	// Code is CodeOK on success, otherwise one of the errs codes.
	Code int `json:"code"`

	// Message is "success", "created", or the client-facing error text.
	Message string `json:"message"`

	// Data holds the payload and is omitted on errors.
	Data any `json:"data,omitempty"`
}

// RespondJSON marshals payload before touching the response, so an encoding
// failure can still be reported as a plain 500.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus, "path", r.URL.Path)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

// RespondSuccess writes data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{Code: CodeOK, Message: "success", Data: data})
}

// RespondCreated writes data with HTTP 201.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusCreated, JSONResponse{Code: CodeOK, Message: "created", Data: data})
}

// RespondError writes customErr with its own HTTP status. A nil error is
// reported as ErrUnknown rather than as a success.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{Code: customErr.Code, Message: customErr.Message})
}

// Envelope is the envelope as read by a client, with Data left undecoded.
type Envelope struct {
	Status  int             `json:"-"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Failure is a non-success envelope.
type Failure struct {
	Status  int
	Code    int
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("api error %d (HTTP %d): %s", f.Code, f.Status, f.Message)
}

// Decode reads one envelope from body. status is the HTTP status it arrived
// with; a non-zero code or a 4xx/5xx status yields a *Failure.
func Decode(body io.Reader, status int) (*Envelope, error) {
	env := &Envelope{Status: status}
	if err := json.NewDecoder(body).Decode(env); err != nil {
		return nil, fmt.Errorf("decode response envelope (HTTP %d): %w", status, err)
	}

	if env.Code != CodeOK || status >= http.StatusBadRequest {
		return env, &Failure{Status: status, Code: env.Code, Message: env.Message}
	}

	return env, nil
}

// Into unmarshals Data into out. An absent payload leaves out untouched.
func (e *Envelope) Into(out any) error {
	if out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}
