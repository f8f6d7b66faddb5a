package extraction

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// Enhance applies a document-friendly cleanup pass before extraction:
// grayscale for contrast, a contrast and sharpness boost to make printed
// text crisper, and a slight brightness lift for dim photos. Input must
// already be a decodable image (call Normalize first).
func Enhance(imageData []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding image for enhancement: %w", err)
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding enhanced image: %w", err)
	}
	return buf.Bytes(), nil
}
