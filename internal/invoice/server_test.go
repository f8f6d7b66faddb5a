package invoice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoicescan/internal/extraction"
)

func uploadRequest(filename string, data []byte, contentType, force string) *http.Request {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())

	if force != "" {
		Expect(w.WriteField("force", force)).To(Succeed())
	}
	Expect(w.Close()).To(Succeed())

	req := httptest.NewRequest("POST", "/invoices/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var _ = Describe("Server", func() {
	var (
		db       *mockDB
		ext      *mockExtractor
		store    *mockStorage
		renderer *mockRenderer
		server   *Server
		rec      *httptest.ResponseRecorder
	)

	BeforeEach(func() {
		db = newMockDB()
		ext = newMockExtractor()
		store = newMockStorage()
		renderer = &mockRenderer{}
		service := newTestService(db, ext, store, renderer, GinkgoT().TempDir())
		server = NewServer(service, BasicAuth{})
		rec = httptest.NewRecorder()
	})

	Describe("POST /invoices/upload", func() {
		It("creates a record for a fresh upload", func() {
			server.ServeHTTP(rec, uploadRequest("invoice.png", makePNG(9), "image/png", ""))

			Expect(rec.Code).To(Equal(http.StatusCreated))

			var result UploadResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.IsCached).To(BeFalse())
			Expect(result.Invoice.StoreName).To(Equal("Alpha Mart"))
			Expect(result.Invoice.ContentHash).To(HaveLen(64))
		})

		It("answers a duplicate upload from the store with 200", func() {
			data := makePNG(9)
			server.ServeHTTP(httptest.NewRecorder(), uploadRequest("first.png", data, "image/png", ""))
			ext.calls = 0

			server.ServeHTTP(rec, uploadRequest("second.png", data, "image/png", ""))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var result UploadResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.IsCached).To(BeTrue())
			Expect(ext.calls).To(BeZero())
		})

		It("rejects an unsupported declared type with 400", func() {
			server.ServeHTTP(rec, uploadRequest("notes.txt", []byte("text"), "text/plain", ""))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(ext.calls).To(BeZero())
		})

		It("answers 422 for a malformed extraction reply", func() {
			ext.err = fmt.Errorf("parsing invoice data: %w", extraction.ErrMalformedReply)

			server.ServeHTTP(rec, uploadRequest("invoice.png", makePNG(9), "image/png", ""))

			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("answers 502 when the extraction service fails", func() {
			ext.err = errors.New("connection refused")

			server.ServeHTTP(rec, uploadRequest("invoice.png", makePNG(9), "image/png", ""))

			Expect(rec.Code).To(Equal(http.StatusBadGateway))
		})

		It("answers 400 when no file field is present", func() {
			body := &bytes.Buffer{}
			w := multipart.NewWriter(body)
			Expect(w.WriteField("force", "true")).To(Succeed())
			Expect(w.Close()).To(Succeed())
			req := httptest.NewRequest("POST", "/invoices/upload", body)
			req.Header.Set("Content-Type", w.FormDataContentType())

			server.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /invoices", func() {
		It("returns a JSON array", func() {
			db.invoices[1] = &Invoice{ID: 1, StoreName: "Alpha Mart", ContentHash: ContentHash([]byte("a"))}

			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var invoices []*Invoice
			Expect(json.Unmarshal(rec.Body.Bytes(), &invoices)).To(Succeed())
			Expect(invoices).To(HaveLen(1))
		})
	})

	Describe("GET /invoices/{id}", func() {
		It("returns an existing record", func() {
			db.invoices[7] = &Invoice{ID: 7, StoreName: "Beta Store", InvoiceDate: NewDate(2024, 1, 5), ContentHash: ContentHash([]byte("b"))}

			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/7", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"invoice_date":"2024-01-05"`))
		})

		It("answers 404 for an unknown id", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/99", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("answers 400 for a non-numeric id", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/abc", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /invoices/hash/{hash}", func() {
		It("returns the record matching a hash", func() {
			hash := ContentHash([]byte("b"))
			db.invoices[3] = &Invoice{ID: 3, ContentHash: hash}

			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/hash/"+hash, nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("answers 400 for a malformed hash", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/hash/zzz", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers 404 for an unknown hash", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/hash/"+ContentHash([]byte("unknown")), nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /invoices/file/{id}", func() {
		It("serves the original blob with a guessed content type", func() {
			store.files["stored.png"] = []byte("png-bytes")
			db.invoices[4] = &Invoice{ID: 4, FilePath: "stored.png", ContentHash: ContentHash([]byte("c"))}

			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/file/4", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/png"))
			Expect(rec.Body.Bytes()).To(Equal([]byte("png-bytes")))
		})

		It("answers 404 when the record is missing", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/file/99", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /invoices/{id}", func() {
		It("removes the record and blob", func() {
			store.files["stored.png"] = []byte("data")
			db.invoices[2] = &Invoice{ID: 2, FilePath: "stored.png", ContentHash: ContentHash([]byte("d"))}

			server.ServeHTTP(rec, httptest.NewRequest("DELETE", "/invoices/2", nil))

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(db.invoices).To(BeEmpty())
			Expect(store.files).To(BeEmpty())
		})

		It("answers 404 afterwards", func() {
			server.ServeHTTP(rec, httptest.NewRequest("DELETE", "/invoices/2", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /invoices/stats/cache", func() {
		It("reports derived duplicate stats", func() {
			db.stats = NewCacheStats(5, 3)

			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices/stats/cache", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var stats CacheStats
			Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
			Expect(stats.Duplicates).To(Equal(int64(2)))
			Expect(stats.DuplicateRate).To(Equal(40.0))
		})
	})

	Describe("POST /reports/generate", func() {
		It("streams a PDF for a valid request", func() {
			body := strings.NewReader(`{"start_date": "2024-01-01", "end_date": "2024-01-31", "report_type": "monthly"}`)
			server.ServeHTTP(rec, httptest.NewRequest("POST", "/reports/generate", body))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/pdf"))
			Expect(rec.Header().Get("Content-Disposition")).To(ContainSubstring("report_monthly_"))
		})

		It("rejects an unknown report type", func() {
			body := strings.NewReader(`{"start_date": "2024-01-01", "end_date": "2024-01-31", "report_type": "weekly"}`)
			server.ServeHTTP(rec, httptest.NewRequest("POST", "/reports/generate", body))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an inverted date range", func() {
			body := strings.NewReader(`{"start_date": "2024-02-01", "end_date": "2024-01-01", "report_type": "monthly"}`)
			server.ServeHTTP(rec, httptest.NewRequest("POST", "/reports/generate", body))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unparseable body", func() {
			server.ServeHTTP(rec, httptest.NewRequest("POST", "/reports/generate", strings.NewReader("{")))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /health", func() {
		It("reports healthy", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("healthy"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			service := newTestService(db, ext, store, renderer, GinkgoT().TempDir())
			server = NewServer(service, BasicAuth{Username: "admin", Password: "secret"})
		})

		It("rejects requests without credentials", func() {
			server.ServeHTTP(rec, httptest.NewRequest("GET", "/invoices", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts requests with the right credentials", func() {
			req := httptest.NewRequest("GET", "/invoices", nil)
			req.SetBasicAuth("admin", "secret")

			server.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})
})
