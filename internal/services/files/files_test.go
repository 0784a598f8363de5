package files

import (
	"bytes"
	"strings"
	"testing"

	apperrors "portal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	pdf := []byte("%PDF-1.7\n1 0 obj\n")
	ct, err := Detect(pdf, ContentTypePDF, ContentTypePNG)
	require.NoError(t, err)
	assert.Equal(t, ContentTypePDF, ct)

	png := []byte("\x89PNG\x0D\x0A\x1A\x0A0000")
	_, err = Detect(png, ContentTypePDF)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDocument))

	_, err = Detect(nil, ContentTypePDF)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDocument))

	big := append([]byte("%PDF-"), bytes.Repeat([]byte{'a'}, MaxDocumentBytes)...)
	_, err = Detect(big, ContentTypePDF)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidDocument))
}

func TestObjectPath(t *testing.T) {
	p := ObjectPath("42", "../../My Articles (signed).PDF")
	assert.True(t, strings.HasPrefix(p, "42/"))
	assert.True(t, strings.HasSuffix(p, "-my-articles-signed.pdf"), p)
	assert.NotContains(t, p, "..")

	assert.True(t, strings.HasSuffix(ObjectPath("1", "???"), "-file"))
}
