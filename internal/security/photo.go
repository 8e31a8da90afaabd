package security

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrPhotoEmpty 照片内容为空
	ErrPhotoEmpty = errors.New("照片内容为空")
	// ErrPhotoTooLarge 照片超出大小限制
	ErrPhotoTooLarge = errors.New("照片体积超出限制")
	// ErrPhotoFormat 不支持的图片格式
	ErrPhotoFormat = errors.New("不支持的图片格式")
)

// PhotoValidator 扫描照片上传校验器
//
// 按文件魔数识别格式而不是信任客户端声明的 Content-Type。
type PhotoValidator struct {
	maxBytes int64
}

// 支持的图片格式魔数
var imageSignatures = []struct {
	format string
	magic  []byte
	offset int
}{
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}, 0},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, 0},
	{"webp", []byte("WEBP"), 8},
	{"heic", []byte("ftyp"), 4},
}

// NewPhotoValidator 创建照片校验器，maxBytes <= 0 时使用 10MB 默认值。
func NewPhotoValidator(maxBytes int64) *PhotoValidator {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &PhotoValidator{maxBytes: maxBytes}
}

// Validate 校验一张上传照片，返回识别出的格式名。
func (v *PhotoValidator) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrPhotoEmpty
	}
	if int64(len(data)) > v.maxBytes {
		return "", fmt.Errorf("%w: %d 字节，上限 %d 字节", ErrPhotoTooLarge, len(data), v.maxBytes)
	}

	for _, sig := range imageSignatures {
		end := sig.offset + len(sig.magic)
		if len(data) >= end && bytes.Equal(data[sig.offset:end], sig.magic) {
			return sig.format, nil
		}
	}
	return "", ErrPhotoFormat
}

// ContentType 返回格式对应的 MIME 类型。
func ContentType(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
