package invoice

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/corona10/goimagehash"
)

// ContentHash returns the lowercase hex sha256 digest of data. Identical
// bytes always hash identically regardless of filename or declared MIME
// type; this is the exact-duplicate key for the store.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PerceptualHash computes a perception hash over the decoded pixel
// content of an image. The value is stored with the invoice but nothing
// consults it yet; similarity-based matching needs a distance policy
// before it can be wired up.
func PerceptualHash(imageData []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("decoding image for perceptual hash: %w", err)
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("computing perceptual hash: %w", err)
	}
	return hash.ToString(), nil
}
