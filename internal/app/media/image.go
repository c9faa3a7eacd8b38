/*
Package media validates base64 image data URLs sent by clients and uploads them
to object storage.
*/
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"duochat/internal/app/storage"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/randx"
)

const (
	// MaxImageSizeMB is the maximum decoded image size in megabytes.
	MaxImageSizeMB = 5

	// MaxImageSize is the maximum decoded image size in bytes.
	MaxImageSize = MaxImageSizeMB * 1024 * 1024
)

// allowedMIMETypes maps permitted image MIME types to the extension used for object keys.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Image is a decoded data URL.
type Image struct {
	MimeType string
	Ext      string
	Data     []byte
}

// ParseDataURL decodes "data:image/<type>;base64,<payload>".
// The declared MIME type must be allowed and must match the sniffed content.
func ParseDataURL(s string) (*Image, *errs.CustomError) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, errs.NewError(errs.ErrImageInvalid)
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errs.NewError(errs.ErrImageInvalid)
	}

	mimeType, ok := strings.CutSuffix(strings.ToLower(header), ";base64")
	if !ok {
		return nil, errs.NewError(errs.ErrImageInvalid)
	}

	ext, ok := allowedMIMETypes[mimeType]
	if !ok {
		return nil, errs.NewError(errs.ErrImageInvalid)
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize+3 {
		return nil, errs.NewError(errs.ErrFileSizeTooLarge)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, errs.NewError(errs.ErrImageInvalid)
	}

	if len(data) > MaxImageSize {
		return nil, errs.NewError(errs.ErrFileSizeTooLarge)
	}

	if sniffed := http.DetectContentType(data); sniffed != mimeType {
		return nil, errs.NewError(errs.ErrImageInvalid)
	}

	return &Image{MimeType: mimeType, Ext: ext, Data: data}, nil
}

// UploadDataURL validates dataURL and stores it under "<prefix>/<uuid><ext>",
// returning the public URL.
func UploadDataURL(ctx context.Context, store storage.StorageService, prefix, dataURL string) (string, *errs.CustomError) {
	img, customErr := ParseDataURL(dataURL)
	if customErr != nil {
		return "", customErr
	}

	key := randx.ObjectKey(prefix, img.Ext)

	url, err := store.Upload(ctx, key, img.MimeType, bytes.NewReader(img.Data))
	if err != nil {
		logx.Error(err, "Image upload failed", "key", key, "bytes", len(img.Data))
		return "", errs.NewError(errs.ErrFileStorageFailed)
	}

	return url, nil
}
