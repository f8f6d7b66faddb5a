package invoice

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Date is a calendar date with no time component. It marshals as
// YYYY-MM-DD in JSON and round-trips through the database as a plain
// date value.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate creates a Date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer so gorm stores the date as a time value.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Scan implements sql.Scanner. Drivers hand back either a time.Time or a
// textual date depending on the dialect.
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LineItem is one product entry within an invoice's itemized detail.
type LineItem struct {
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Amount      float64 `json:"amount"`
	Discount    float64 `json:"discount"`
}

// LineItems is stored as a single JSON column rather than a separate
// table; items are only ever read and written together with their invoice.
type LineItems []LineItem

// Invoice represents one processed invoice document. ContentHash is the
// sha256 of the uploaded bytes and is unique across the store; it is the
// key the duplicate-detection path relies on.
type Invoice struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StoreName      string    `gorm:"index" json:"store_name"`
	InvoiceDate    Date      `gorm:"type:date" json:"invoice_date"`
	Total          float64   `json:"total"`
	LineItems      LineItems `gorm:"serializer:json" json:"line_items"`
	FilePath       string    `json:"file_path"`
	ContentHash    string    `gorm:"size:64;uniqueIndex" json:"content_hash"`
	PerceptualHash string    `gorm:"size:32" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// UploadResult pairs an invoice with the cache disposition of the upload
// that produced it.
type UploadResult struct {
	Invoice  *Invoice `json:"invoice"`
	IsCached bool     `json:"is_cached"`
}

// CacheStats summarizes how much work the duplicate-detection path has
// saved. DuplicateRate is a percentage and is 0 for an empty store.
type CacheStats struct {
	TotalInvoices  int64   `json:"total_invoices"`
	DistinctHashes int64   `json:"distinct_hashes"`
	Duplicates     int64   `json:"duplicates"`
	DuplicateRate  float64 `json:"duplicate_rate"`
}

// NewCacheStats derives the duplicate count and rate from raw counts.
func NewCacheStats(total, distinct int64) *CacheStats {
	stats := &CacheStats{
		TotalInvoices:  total,
		DistinctHashes: distinct,
		Duplicates:     total - distinct,
	}
	if total > 0 {
		stats.DuplicateRate = float64(stats.Duplicates) / float64(total) * 100
	}
	return stats
}
