package report

import (
	"fmt"

	"github.com/go-pdf/fpdf"

	"invoicescan/internal/invoice"
)

// Renderer lays a Model out into a paginated document at path.
type Renderer = invoice.Renderer

type column struct {
	header string
	width  float64
}

var columns = []column{
	{"Date", 20},
	{"Store", 30},
	{"Product", 44},
	{"Qty", 12},
	{"Unit", 14},
	{"Amount", 24},
	{"Discount", 20},
	{"Inv. Total", 26},
}

// PDFRenderer writes the report as an A4 PDF: title, summary block, then
// the grouped table with a repeated header, alternating per-invoice
// shading and a bold first row per group.
type PDFRenderer struct{}

// Render writes the model to path.
func (PDFRenderer) Render(m *Model, path string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(m.Title, false)
	pdf.SetAutoPageBreak(false, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, m.Title, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	writeSummary(pdf, m.Summary)
	pdf.Ln(4)

	if !m.Summary.NoData {
		writeTableHeader(pdf)
		for _, row := range m.Rows {
			if pdf.GetY() > 275 {
				pdf.AddPage()
				writeTableHeader(pdf)
			}
			writeRow(pdf, row)
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("writing report pdf: %w", err)
	}
	return nil
}

func writeSummary(pdf *fpdf.Fpdf, s Summary) {
	pdf.CellFormat(0, 6, fmt.Sprintf("Period: %s", s.Period), "", 1, "L", false, 0, "")
	if s.NoData {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "No invoices found for this period", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		return
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Total Invoices: %d", s.InvoiceCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total Items: %d", s.LineItemCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Unique Stores: %d", s.DistinctStores), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total Amount: Rp.%.2f", s.TotalAmount), "", 1, "L", false, 0, "")
}

func writeTableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(255, 255, 255)
	for _, col := range columns {
		pdf.CellFormat(col.width, 8, col.header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}

func writeRow(pdf *fpdf.Fpdf, row Row) {
	if row.GroupStart {
		pdf.SetFont("Helvetica", "B", 8)
	} else {
		pdf.SetFont("Helvetica", "", 8)
	}
	// Alternate shading per invoice group, not per row
	if row.GroupIndex%2 == 0 {
		pdf.SetFillColor(245, 245, 220)
	} else {
		pdf.SetFillColor(255, 255, 255)
	}

	cells := []string{
		row.Date, row.Store, row.Product, row.Quantity,
		row.Unit, row.Amount, row.Discount, row.Total,
	}
	for i, col := range columns {
		pdf.CellFormat(col.width, 7, cells[i], "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}
