package extraction

import (
	"context"
	"errors"
)

// ErrMalformedReply reports that the model answered but its reply could
// not be parsed as the expected JSON contract. Surfaced to the caller as
// a validation failure and never retried.
var ErrMalformedReply = errors.New("malformed extraction reply")

// LineItemData is one extracted line item, pre-validation.
type LineItemData struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Amount      float64 `json:"amount"`
	Discount    float64 `json:"discount"`
}

// InvoiceData contains structured information extracted from an invoice
// image. InvoiceDate is normalized to YYYY-MM-DD.
type InvoiceData struct {
	StoreName   string         `json:"store_name"`
	InvoiceDate string         `json:"invoice_date"`
	Total       float64        `json:"total"`
	Details     []LineItemData `json:"details"`
}

// Extractor defines the interface for vision-model invoice extraction
type Extractor interface {
	// ExtractInvoice analyzes an invoice image and returns structured data
	ExtractInvoice(ctx context.Context, imageData []byte, mimeType string) (*InvoiceData, error)
	// Close releases any resources held by the extractor
	Close() error
}
