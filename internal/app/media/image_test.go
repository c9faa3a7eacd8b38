package media

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/pkg/errs"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 24)...)

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestParseDataURL(t *testing.T) {
	img, err := ParseDataURL(dataURL("image/png", pngBytes))

	require.Nil(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, ".png", img.Ext)
	assert.Equal(t, pngBytes, img.Data)
}

func TestParseDataURLRejects(t *testing.T) {
	cases := map[string]struct {
		in   string
		code int
	}{
		"plain url":      {"https://example.com/a.png", errs.ErrImageInvalid},
		"not base64":     {"data:image/png,abc", errs.ErrImageInvalid},
		"svg":            {dataURL("image/svg+xml", []byte("<svg/>")), errs.ErrImageInvalid},
		"mime mismatch":  {dataURL("image/jpeg", pngBytes), errs.ErrImageInvalid},
		"garbage base64": {"data:image/png;base64,!!!", errs.ErrImageInvalid},
		"too large":      {dataURL("image/png", make([]byte, MaxImageSize+10)), errs.ErrFileSizeTooLarge},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDataURL(tc.in)
			require.NotNil(t, err)
			assert.Equal(t, tc.code, err.Code)
		})
	}
}

type memStore struct {
	keys []string
	fail bool
}

func (m *memStore) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if m.fail {
		return "", errors.New("bucket unavailable")
	}
	_, _ = io.Copy(io.Discard, body)
	m.keys = append(m.keys, key)
	return "https://cdn.test/" + key, nil
}

func (m *memStore) Delete(context.Context, string) error { return nil }
func (m *memStore) KeyFromURL(string) string            { return "" }

func TestUploadDataURL(t *testing.T) {
	store := &memStore{}

	url, err := UploadDataURL(context.Background(), store, "messages/u1", dataURL("image/png", pngBytes))

	require.Nil(t, err)
	require.Len(t, store.keys, 1)
	assert.True(t, strings.HasPrefix(store.keys[0], "messages/u1/"))
	assert.Equal(t, "https://cdn.test/"+store.keys[0], url)
}

func TestUploadDataURLStorageFailure(t *testing.T) {
	_, err := UploadDataURL(context.Background(), &memStore{fail: true}, "p", dataURL("image/png", pngBytes))

	require.NotNil(t, err)
	assert.Equal(t, errs.ErrFileStorageFailed, err.Code)
}
