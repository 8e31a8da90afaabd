package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// 上传前的图片尺寸上限，超出则等比缩小
const (
	maxWidth  = 800
	maxHeight = 600

	jpegQuality = 85
)

// Downscale 等比缩小图片到指定尺寸以内
//
// 不超限的图片原样返回。输出统一为 JPEG。
func Downscale(data []byte, maxW, maxH int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("图片解码失败: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxW && h <= maxH {
		return data, nil
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("图片编码失败: %w", err)
	}
	return buf.Bytes(), nil
}
