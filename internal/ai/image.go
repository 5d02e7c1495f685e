package ai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	// visionMaxEdge caps the longer edge of images sent to vision models.
	visionMaxEdge = 800

	jpegQuality = 85
)

// ResizeImage resizes an image to fit within maxSize (width or height) while
// keeping aspect ratio. The result is always JPEG, whatever came in.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		return encodeJPEGBytes(img)
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	return encodeJPEGBytes(resized)
}

func encodeJPEGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// visionDataURL downscales an image and wraps it as a base64 data URL for
// providers that take images by URL.
func visionDataURL(data []byte) (string, error) {
	resized, err := ResizeImage(data, visionMaxEdge)
	if err != nil {
		return "", fmt.Errorf("failed to resize image: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized), nil
}
