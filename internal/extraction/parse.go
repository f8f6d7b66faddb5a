package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// parseInvoiceJSON turns the model's textual reply into InvoiceData. The
// reply is untrusted: fields may be missing, null, or strings where
// numbers belong, so every field is coerced explicitly with a default.
func parseInvoiceJSON(text string) (*InvoiceData, error) {
	text = stripCodeFences(text)

	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedReply)
	}
	text = text[startIdx : endIdx+1]

	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	data := &InvoiceData{
		StoreName:   coerceString(raw["store_name"], "Unknown Store"),
		InvoiceDate: normalizeDate(coerceString(raw["invoice_date"], "")),
		Total:       clampNonNegative(coerceNumber(raw["total"])),
	}

	details, _ := raw["details"].([]any)
	for _, entry := range details {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		data.Details = append(data.Details, LineItemData{
			ProductName: coerceString(item["product_name"], "Unknown Item"),
			Quantity:    clampNonNegative(coerceNumber(item["quantity"])),
			Unit:        coerceString(item["unit"], "pcs"),
			Amount:      coerceNumber(item["amount"]),
			Discount:    clampNonNegative(coerceNumber(item["discount"])),
		})
	}

	return data, nil
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// coerceString returns the trimmed string value or fallback when the
// field is absent, null, or blank.
func coerceString(v any, fallback string) string {
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}

// coerceNumber accepts a JSON number or a string containing one
// ("2 boxes", "Rp.1.500" style values come back from the model) and
// returns 0 when nothing numeric can be found.
func coerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		match := numberPattern.FindString(n)
		if match == "" {
			return 0
		}
		match = strings.ReplaceAll(match, ",", ".")
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func clampNonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}

// normalizeDate coerces the extracted date to YYYY-MM-DD, trying a few
// common layouts before falling back to today.
func normalizeDate(s string) string {
	if s == "" {
		return time.Now().Format("2006-01-02")
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
	}
	for _, layout := range layouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return time.Now().Format("2006-01-02")
}
