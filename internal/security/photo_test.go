package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoValidator_Validate(t *testing.T) {
	v := NewPhotoValidator(0)

	t.Run("识别 JPEG", func(t *testing.T) {
		format, err := v.Validate([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00})
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("识别 PNG", func(t *testing.T) {
		format, err := v.Validate([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00})
		require.NoError(t, err)
		assert.Equal(t, "png", format)
	})

	t.Run("识别 WebP", func(t *testing.T) {
		data := append([]byte("RIFF\x00\x00\x00\x00"), []byte("WEBP")...)
		format, err := v.Validate(data)
		require.NoError(t, err)
		assert.Equal(t, "webp", format)
	})

	t.Run("拒绝空内容", func(t *testing.T) {
		_, err := v.Validate(nil)
		assert.ErrorIs(t, err, ErrPhotoEmpty)
	})

	t.Run("拒绝非图片内容", func(t *testing.T) {
		_, err := v.Validate([]byte("MZ executable"))
		assert.ErrorIs(t, err, ErrPhotoFormat)
	})

	t.Run("拒绝超大文件", func(t *testing.T) {
		small := NewPhotoValidator(4)
		_, err := small.Validate([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00})
		assert.True(t, errors.Is(err, ErrPhotoTooLarge))
	})
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("png"))
	assert.Equal(t, "image/jpeg", ContentType("jpeg"))
	assert.Equal(t, "image/jpeg", ContentType("unknown"))
}
