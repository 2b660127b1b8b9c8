package service

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateThumbnailFitsBox(t *testing.T) {
	out, err := generateThumbnail(jpegBytes(t, 1280, 640))
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 160, cfg.Height)
}

func TestGenerateThumbnailDoesNotUpscale(t *testing.T) {
	out, err := generateThumbnail(jpegBytes(t, 100, 50))
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
}

func TestGenerateThumbnailRejectsGarbage(t *testing.T) {
	_, err := generateThumbnail([]byte("nope"))
	assert.Error(t, err)
}

func TestCaptureTimeWithoutExif(t *testing.T) {
	assert.Nil(t, captureTime(jpegBytes(t, 8, 8)))
	assert.Nil(t, captureTime([]byte("nope")))
}
