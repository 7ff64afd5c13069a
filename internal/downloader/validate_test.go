package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgdataset/pkg/errors"
)

func TestValidator(t *testing.T) {
	data := pngBytes(t, 20, 10, 0)

	info, err := Validator{Decode: true}.Validate(data)
	require.NoError(t, err)
	assert.Equal(t, &ImageInfo{Format: "png", Ext: ".png", Width: 20, Height: 10}, info)

	_, err = Validator{MinWidth: 10, MinHeight: 11}.Validate(data)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeInvalidImage, errs.TypeOf(err))

	_, err = Validator{}.Validate([]byte("definitely not an image"))
	assert.Equal(t, errs.ErrorTypeInvalidImage, errs.TypeOf(err))

	// A valid header with a truncated body only fails a full decode
	truncated := data[:len(data)/2]
	_, err = Validator{}.Validate(truncated)
	assert.NoError(t, err)
	_, err = Validator{Decode: true}.Validate(truncated)
	assert.Equal(t, errs.ErrorTypeInvalidImage, errs.TypeOf(err))
}

func TestGuessExtension(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		want        string
	}{
		{"image/jpeg", "https://x/a", ".jpg"},
		{"image/png; charset=binary", "https://x/a.jpg", ".png"},
		{"image/pjpeg", "", ".jpg"},
		{"application/octet-stream", "https://x/photo.WEBP?size=l", ".webp"},
		{"", "https://x/photo.jpeg", ".jpg"},
		{"", "https://x/photo.php", ".jpg"},
		{"", "::bad url", ".jpg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GuessExtension(tt.contentType, tt.url), "%s %s", tt.contentType, tt.url)
	}
}
