package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"invoicescan/internal/extraction"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// allowedTypes is checked against the declared content type before any
// work happens; rejection must precede the extraction call.
var allowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/webp":      true,
	"application/pdf": true,
	"image/heic":      true,
	"image/heif":      true,
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Service handles invoice operations
type Service struct {
	db         DB
	extractor  extraction.Extractor
	storage    Storage
	renderer   Renderer
	reportDir  string
	enhance    bool
	timeSource TimeSource
}

// NewService creates a new Service with the default time source.
func NewService(db DB, extractor extraction.Extractor, storage Storage, renderer Renderer, reportDir string, enhance bool) *Service {
	return NewServiceWithDeps(db, extractor, storage, renderer, reportDir, enhance, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with a custom time source for testing
func NewServiceWithDeps(db DB, extractor extraction.Extractor, storage Storage, renderer Renderer, reportDir string, enhance bool, timeSrc TimeSource) *Service {
	return &Service{
		db:         db,
		extractor:  extractor,
		storage:    storage,
		renderer:   renderer,
		reportDir:  reportDir,
		enhance:    enhance,
		timeSource: timeSrc,
	}
}

// sanitizeFilename strips special characters and truncates overlong
// phone-generated names.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}
	return base + ext
}

// ProcessUpload runs the upload pipeline: validate the declared type,
// hash the raw bytes, and consult the store before anything expensive
// happens. A hash match short-circuits with the existing record unless
// force is set; otherwise the image is normalized, sent to the
// extraction model, and persisted as a new record.
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte, contentType string, force bool) (*UploadResult, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if !allowedTypes[mimeType] {
		return nil, NewValidationError(
			fmt.Sprintf("unsupported file type %q; allowed: png, jpeg, webp, heic, pdf", contentType), nil)
	}

	hash := ContentHash(data)

	if !force {
		existing, err := s.db.FindByContentHash(hash)
		if err == nil {
			slog.Info("Duplicate upload served from store", "hash", hash, "invoice_id", existing.ID)
			return &UploadResult{Invoice: existing, IsCached: true}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("looking up content hash: %w", err)
		}
	}

	normalized, normMime, converted, err := extraction.Normalize(data, mimeType)
	if err != nil {
		return nil, NewValidationError("file could not be decoded as an image or PDF", err)
	}
	if converted {
		slog.Debug("Converted upload for extraction", "from", mimeType, "to", normMime)
	}

	if s.enhance {
		enhanced, err := extraction.Enhance(normalized)
		if err != nil {
			slog.Warn("Image enhancement failed, using original", "error", err)
		} else {
			normalized, normMime = enhanced, "image/png"
		}
	}

	// Stored for future near-duplicate detection; nothing queries it yet.
	phash, err := PerceptualHash(normalized)
	if err != nil {
		slog.Debug("Perceptual hash unavailable", "error", err)
	}

	extracted, err := s.extractor.ExtractInvoice(ctx, normalized, normMime)
	if err != nil {
		if errors.Is(err, extraction.ErrMalformedReply) {
			return nil, NewValidationError("extraction reply could not be parsed", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(extracted.Details) == 0 {
		return nil, NewValidationError("extraction produced no line items",
			extraction.ErrMalformedReply)
	}

	invoiceDate, err := ParseDate(extracted.InvoiceDate)
	if err != nil {
		now := s.timeSource.Now()
		invoiceDate = NewDate(now.Year(), now.Month(), now.Day())
	}

	items := make(LineItems, 0, len(extracted.Details))
	for _, d := range extracted.Details {
		items = append(items, LineItem{
			ProductName: d.ProductName,
			Quantity:    d.Quantity,
			Unit:        d.Unit,
			Amount:      d.Amount,
			Discount:    d.Discount,
		})
	}

	storedName := fmt.Sprintf("%s_%s",
		s.timeSource.Now().Format("20060102_150405"), sanitizeFilename(filename))
	savedPath, err := s.storage.Save(storedName, data)
	if err != nil {
		return nil, fmt.Errorf("saving uploaded file: %w", err)
	}

	inv := &Invoice{
		StoreName:      extracted.StoreName,
		InvoiceDate:    invoiceDate,
		Total:          extracted.Total,
		LineItems:      items,
		FilePath:       savedPath,
		ContentHash:    hash,
		PerceptualHash: phash,
	}

	if err := s.db.SaveInvoice(inv); err != nil {
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to clean up blob after insert failure", "path", savedPath, "error", delErr)
		}
		// A concurrent upload of the same bytes can win the insert race;
		// fall back to the record it wrote.
		if IsDuplicateHash(err) {
			existing, lookupErr := s.db.FindByContentHash(hash)
			if lookupErr != nil {
				return nil, fmt.Errorf("resolving duplicate hash after insert conflict: %w", lookupErr)
			}
			return &UploadResult{Invoice: existing, IsCached: true}, nil
		}
		return nil, fmt.Errorf("saving invoice: %w", err)
	}

	return &UploadResult{Invoice: inv, IsCached: false}, nil
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(id uint) (*Invoice, error) {
	return s.db.GetInvoice(id)
}

// GetInvoiceByHash retrieves an invoice by content hash
func (s *Service) GetInvoiceByHash(hash string) (*Invoice, error) {
	hash = strings.ToLower(hash)
	if !hashPattern.MatchString(hash) {
		return nil, NewValidationError("content hash must be 64 hex characters", nil)
	}
	return s.db.FindByContentHash(hash)
}

// ListInvoices returns a page of invoices
func (s *Service) ListInvoices(skip, limit int) ([]*Invoice, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return s.db.ListInvoices(skip, limit)
}

// DeleteInvoice removes an invoice record and its backing blob
func (s *Service) DeleteInvoice(id uint) error {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(inv.FilePath); err != nil {
		slog.Warn("Failed to delete blob", "path", inv.FilePath, "error", err)
	}

	return s.db.DeleteInvoice(id)
}

// GetInvoiceFile retrieves the originally uploaded blob for an invoice
func (s *Service) GetInvoiceFile(id uint) ([]byte, string, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.storage.Get(inv.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}
	return data, inv.FilePath, nil
}

// CacheStats reports duplicate-detection totals
func (s *Service) CacheStats() (*CacheStats, error) {
	return s.db.CacheStats()
}

// GenerateReport builds and renders a date-ranged PDF report, returning
// the path of the written file and its download name.
func (s *Service) GenerateReport(start, end Date, reportType string) (string, string, error) {
	if reportType != "monthly" && reportType != "yearly" {
		return "", "", NewValidationError("report_type must be 'monthly' or 'yearly'", nil)
	}
	if start.After(end.Time) {
		return "", "", NewValidationError("start_date must not be after end_date", nil)
	}

	invoices, err := s.db.ListInvoicesByDateRange(start, end)
	if err != nil {
		return "", "", fmt.Errorf("fetching invoices for report: %w", err)
	}

	model := Build(invoices, start, end, reportType)

	name := fmt.Sprintf("report_%s_%s.pdf", reportType, s.timeSource.Now().Format("20060102_150405"))
	path := filepath.Join(s.reportDir, name)
	if err := s.renderer.Render(model, path); err != nil {
		return "", "", fmt.Errorf("rendering report: %w", err)
	}

	slog.Info("Report generated", "path", path,
		"invoices", model.Summary.InvoiceCount, "rows", len(model.Rows))
	return path, name, nil
}
