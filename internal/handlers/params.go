// Package handlers adapts the portal services to fiber routes.
package handlers

import (
	"io"
	"strconv"

	apperrors "portal/internal/errors"
	"portal/internal/services/files"

	"github.com/gofiber/fiber/v2"
)

func idParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.ErrInvalidRequest.WithMessage("invalid " + name)
	}
	return uint(id), nil
}

// queryUint parses an optional numeric filter; absent or bad values are 0.
func queryUint(c *fiber.Ctx, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

// formFile reads the named multipart file, refusing anything larger than
// files.MaxDocumentBytes.
func formFile(c *fiber.Ctx, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, apperrors.ErrInvalidRequest.WithMessage(field + " is required")
	}
	if fh.Size > files.MaxDocumentBytes {
		return "", nil, apperrors.ErrInvalidDocument.WithMessage("file exceeds 10 MB")
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, files.MaxDocumentBytes+1))
	if err != nil {
		return "", nil, err
	}
	return fh.Filename, data, nil
}
