package report

import (
	"invoicescan/internal/invoice"
)

// The report model and builder live in the invoice package so that the
// service there can depend on them without creating an import cycle;
// these aliases keep the report-package names.

// Row is one rendered table line. Record-level columns (Date, Store,
// Total) are only filled on the first row of each invoice's group; the
// remaining rows of the group leave them blank, which reads like merged
// cells in the output.
type Row = invoice.Row

// Summary holds the aggregate statistics printed above the table.
type Summary = invoice.Summary

// Model is the grouped-and-summarized representation handed to the
// renderer.
type Model = invoice.Model

// Build filters invoices to [start, end] inclusive, orders them most
// recent first, and flattens their line items into grouped rows. An
// empty range still yields a well-formed model; an invoice without line
// items contributes to the summary but produces no rows.
func Build(invoices []*invoice.Invoice, start, end invoice.Date, reportType string) *Model {
	return invoice.Build(invoices, start, end, reportType)
}
