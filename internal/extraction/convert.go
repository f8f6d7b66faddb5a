package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp" // Register WEBP decoder
)

// invoiceExtractionPrompt is shared by all extractor implementations.
const invoiceExtractionPrompt = `Analyze this invoice image and extract the following information in JSON format:

{
  "store_name": "Name of the vendor/store",
  "invoice_date": "Date in YYYY-MM-DD format",
  "total": numeric value of total amount after discounts,
  "details": [
    {
      "product_name": "Name of product/service",
      "quantity": numeric quantity,
      "unit": "unit of measurement (liter, pcs, box)",
      "amount": numeric amount for this item before discount,
      "discount": numeric discount for the product
    }
  ]
}

Important:
- Return ONLY valid JSON, no markdown code blocks or additional text
- Ensure all numeric values are numbers, not strings
- If the quantity is written as a string, extract only the numerical value from the string
- If the unit of measurement is missing, use the most likely unit for the product, such as grams for fruit products, or use 'pcs' as the default
- If you can't find a field, use null for that field or 0 if the field requires a numerical value
- Extract ALL line items from the invoice into the details array`

// passthroughTypes are handed to the model unchanged; everything else is
// decoded and re-encoded as PNG first.
var passthroughTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
}

// Normalize prepares uploaded bytes for the vision model. PDFs are
// rasterized, HEIC and other decodable formats are re-encoded as PNG,
// and the passthrough set goes through untouched. Corrupt data fails
// loudly rather than being passed along.
func Normalize(data []byte, contentType string) ([]byte, string, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if mimeType == "application/pdf" {
		pngData, err := pdfToImage(data)
		if err != nil {
			return nil, "", false, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, "image/png", true, nil
	}

	if passthroughTypes[mimeType] && !isHEICData(data) {
		return data, mimeType, false, nil
	}

	pngData, err := imageToPNG(data, mimeType)
	if err != nil {
		return nil, "", false, err
	}
	return pngData, "image/png", true, nil
}

// pdfToImage renders the first page of a PDF as PNG. Invoices are almost
// always single page.
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// imageToPNG decodes any supported image format and re-encodes it as PNG.
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	if isHEICData(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICData checks the ftyp box for HEIC/HEIF brands. Phones commonly
// upload HEIC with a generic or jpeg content type.
func isHEICData(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
