// Package files holds the object storage contract shared by KYB documents,
// certificates of analysis and shipping labels.
package files

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	apperrors "portal/internal/errors"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	MaxDocumentBytes = 10 << 20
	SignedURLTTL     = 15 * time.Minute

	ContentTypePDF  = "application/pdf"
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
)

// Store is a private bucket store that hands out short-lived URLs.
type Store interface {
	Upload(ctx context.Context, bucket, objectPath, contentType string, data []byte) error
	SignedURL(ctx context.Context, bucket, objectPath string, expiresIn time.Duration) (string, error)
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// Detect sniffs data and returns its type when it is one of allowed.
func Detect(data []byte, allowed ...string) (string, error) {
	if len(data) == 0 {
		return "", apperrors.ErrInvalidDocument.WithMessage("file is empty")
	}
	if len(data) > MaxDocumentBytes {
		return "", apperrors.ErrInvalidDocument.WithMessage("file exceeds 10 MB")
	}
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	for _, a := range allowed {
		if ct == a {
			return ct, nil
		}
	}
	return "", apperrors.ErrInvalidDocument.WithMessage("unsupported file type " + ct)
}

// ObjectPath builds "<prefix>/<uuid>-<name>" with the name reduced to a
// safe slug that keeps its extension.
func ObjectPath(prefix, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	name := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if name == "" {
		name = "file"
	}
	return prefix + "/" + uuid.NewString() + "-" + name + ext
}
