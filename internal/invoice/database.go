package invoice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB defines the interface for invoice persistence
type DB interface {
	// SaveInvoice inserts a new invoice record
	SaveInvoice(inv *Invoice) error

	// GetInvoice retrieves an invoice by ID
	GetInvoice(id uint) (*Invoice, error)

	// FindByContentHash retrieves an invoice by its content hash
	FindByContentHash(hash string) (*Invoice, error)

	// ListInvoices returns invoices with skip/limit pagination
	ListInvoices(skip, limit int) ([]*Invoice, error)

	// ListInvoicesByDateRange returns invoices whose date lies in [start, end]
	ListInvoicesByDateRange(start, end Date) ([]*Invoice, error)

	// DeleteInvoice removes an invoice record
	DeleteInvoice(id uint) error

	// CacheStats reports totals for the duplicate-detection path
	CacheStats() (*CacheStats, error)

	// Close closes the database connection
	Close() error
}

// GormDB implements the DB interface on a relational store. SQLite is the
// default; a postgres:// URL selects the postgres driver instead.
type GormDB struct {
	db *gorm.DB
}

// NewGormDB opens the database at url and migrates the invoice schema.
func NewGormDB(url string) (*GormDB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		dialector = postgres.Open(url)
	} else {
		dialector = sqlite.Open(url)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&Invoice{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &GormDB{db: db}, nil
}

// SaveInvoice inserts a new invoice record
func (g *GormDB) SaveInvoice(inv *Invoice) error {
	if err := g.db.Create(inv).Error; err != nil {
		return fmt.Errorf("saving invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID
func (g *GormDB) GetInvoice(id uint) (*Invoice, error) {
	var inv Invoice
	err := g.db.First(&inv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice %d: %w", id, err)
	}
	return &inv, nil
}

// FindByContentHash retrieves an invoice by its content hash
func (g *GormDB) FindByContentHash(hash string) (*Invoice, error) {
	var inv Invoice
	err := g.db.Where("content_hash = ?", hash).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding invoice by hash: %w", err)
	}
	return &inv, nil
}

// ListInvoices returns invoices with skip/limit pagination
func (g *GormDB) ListInvoices(skip, limit int) ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := g.db.Order("id").Offset(skip).Limit(limit).Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// ListInvoicesByDateRange returns invoices whose date lies in [start, end]
func (g *GormDB) ListInvoicesByDateRange(start, end Date) ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := g.db.
		Where("invoice_date >= ? AND invoice_date <= ?", start.Time, end.Time).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("listing invoices by date range: %w", err)
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice record
func (g *GormDB) DeleteInvoice(id uint) error {
	result := g.db.Delete(&Invoice{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting invoice %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CacheStats reports totals for the duplicate-detection path
func (g *GormDB) CacheStats() (*CacheStats, error) {
	var total int64
	if err := g.db.Model(&Invoice{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting invoices: %w", err)
	}

	var distinct int64
	if err := g.db.Model(&Invoice{}).Distinct("content_hash").Count(&distinct).Error; err != nil {
		return nil, fmt.Errorf("counting distinct hashes: %w", err)
	}

	return NewCacheStats(total, distinct), nil
}

// Close closes the database connection
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("getting database instance: %w", err)
	}
	return sqlDB.Close()
}

// IsDuplicateHash reports whether err is a uniqueness violation on the
// content hash index. Message sniffing covers dialects gorm does not
// translate.
func IsDuplicateHash(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
