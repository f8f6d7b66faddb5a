package report

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoicescan/internal/invoice"
)

var _ = Describe("PDFRenderer", func() {
	var (
		path  string
		model *Model
		err   error
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "report.pdf")
	})

	JustBeforeEach(func() {
		err = PDFRenderer{}.Render(model, path)
	})

	When("rendering a populated report", func() {
		BeforeEach(func() {
			invoices := []*invoice.Invoice{
				inv(1, "Alpha Mart", invoice.NewDate(2024, 1, 5), 100,
					item("Rice", 2, "kg", 90, 0),
					item("Sugar", 1, "kg", 10, 0)),
			}
			model = Build(invoices, invoice.NewDate(2024, 1, 1), invoice.NewDate(2024, 1, 31), "monthly")
		})

		It("writes a PDF file", func() {
			Expect(err).NotTo(HaveOccurred())

			data, readErr := os.ReadFile(path)
			Expect(readErr).NotTo(HaveOccurred())
			Expect(len(data)).To(BeNumerically(">", 500))
			Expect(string(data[:5])).To(Equal("%PDF-"))
		})
	})

	When("rendering a no-data report", func() {
		BeforeEach(func() {
			model = Build(nil, invoice.NewDate(2024, 1, 1), invoice.NewDate(2024, 1, 31), "yearly")
		})

		It("still writes a well-formed PDF", func() {
			Expect(err).NotTo(HaveOccurred())

			data, readErr := os.ReadFile(path)
			Expect(readErr).NotTo(HaveOccurred())
			Expect(string(data[:5])).To(Equal("%PDF-"))
		})
	})

	When("rendering enough rows to spill onto a second page", func() {
		BeforeEach(func() {
			items := make([]invoice.LineItem, 0, 60)
			for i := 0; i < 60; i++ {
				items = append(items, item("Product", 1, "pcs", 5, 0))
			}
			invoices := []*invoice.Invoice{
				inv(1, "Bulk Mart", invoice.NewDate(2024, 1, 5), 300, items...),
			}
			model = Build(invoices, invoice.NewDate(2024, 1, 1), invoice.NewDate(2024, 1, 31), "monthly")
		})

		It("paginates without error", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
