package invoice

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Row is one rendered table line. Record-level columns (Date, Store,
// Total) are only filled on the first row of each invoice's group; the
// remaining rows of the group leave them blank, which reads like merged
// cells in the output.
type Row struct {
	Date       string
	Store      string
	Product    string
	Quantity   string
	Unit       string
	Amount     string
	Discount   string
	Total      string
	GroupStart bool
	GroupIndex int
}

// Summary holds the aggregate statistics printed above the table.
type Summary struct {
	Period         string
	InvoiceCount   int
	LineItemCount  int
	DistinctStores int
	TotalAmount    float64
	NoData         bool
}

// Model is the grouped-and-summarized representation handed to the
// renderer.
type Model struct {
	Title   string
	Summary Summary
	Rows    []Row
}

// Renderer lays a Model out into a paginated document at path.
type Renderer interface {
	Render(m *Model, path string) error
}

// Build filters invoices to [start, end] inclusive, orders them most
// recent first, and flattens their line items into grouped rows. An
// empty range still yields a well-formed model; an invoice without line
// items contributes to the summary but produces no rows.
func Build(invoices []*Invoice, start, end Date, reportType string) *Model {
	matched := make([]*Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.InvoiceDate.Before(start.Time) || inv.InvoiceDate.After(end.Time) {
			continue
		}
		matched = append(matched, inv)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].InvoiceDate.Before(matched[i].InvoiceDate.Time)
	})

	m := &Model{
		Title: fmt.Sprintf("Invoice Report (%s)", capitalize(reportType)),
		Summary: Summary{
			Period:       fmt.Sprintf("%s to %s", start, end),
			InvoiceCount: len(matched),
			NoData:       len(matched) == 0,
		},
	}

	stores := make(map[string]struct{})
	for groupIdx, inv := range matched {
		stores[inv.StoreName] = struct{}{}
		m.Summary.TotalAmount += inv.Total
		m.Summary.LineItemCount += len(inv.LineItems)

		for i, item := range inv.LineItems {
			row := Row{
				Product:    item.ProductName,
				Quantity:   formatQuantity(item.Quantity),
				Unit:       item.Unit,
				Amount:     formatAmount(item.Amount),
				Discount:   formatAmount(item.Discount),
				GroupIndex: groupIdx,
			}
			if i == 0 {
				row.Date = inv.InvoiceDate.String()
				row.Store = inv.StoreName
				row.Total = formatAmount(inv.Total)
				row.GroupStart = true
			}
			m.Rows = append(m.Rows, row)
		}
	}
	m.Summary.DistinctStores = len(stores)

	return m
}

func formatAmount(f float64) string {
	return fmt.Sprintf("Rp.%.2f", f)
}

func formatQuantity(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
