/*
Package req provides helpers for parsing HTTP request bodies.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"duochat/internal/pkg/errs"
)

const (
	// DefaultBodyLimit bounds ordinary JSON bodies (credentials, text messages).
	DefaultBodyLimit int64 = 1 << 20 // 1 MB

	// ImageBodyLimit bounds bodies that may carry a base64 image data URL.
	ImageBodyLimit int64 = 10 << 20 // 10 MB
)

// BindJSON decodes a single JSON document from r into dst, rejecting unknown
// fields, trailing content, and bodies larger than limit bytes.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
