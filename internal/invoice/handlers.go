package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"invoicescan/internal/extraction"
)

const maxUploadSize = int64(50 << 20) // 50MB covers high-resolution phone photos

// statusFor maps the error taxonomy to HTTP statuses: not-found 404,
// malformed extraction reply 422, other validation 400, upstream 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, extraction.ErrMalformedReply):
		return http.StatusUnprocessableEntity
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		slog.Error("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleIndex describes the API
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Invoice processing API is running",
		"endpoints": map[string]string{
			"upload_invoice":  "POST /invoices/upload",
			"list_invoices":   "GET /invoices",
			"cache_stats":     "GET /invoices/stats/cache",
			"generate_report": "POST /reports/generate",
		},
	})
}

// handleHealth is the liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleUploadInvoice accepts a multipart invoice upload and runs the
// extraction pipeline. A cached hit answers 200, a fresh record 201.
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, NewValidationError("error parsing multipart form", err))
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, NewValidationError("no file was provided in the 'file' field", err))
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		writeError(w, NewValidationError("file is too large; maximum size is 50MB", nil))
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error reading file"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimeFromName(header.Filename)
	}

	force := parseBool(r.FormValue("force"))

	result, err := s.service.ProcessUpload(r.Context(), header.Filename, data, contentType, force)
	if err != nil {
		slog.Error("Error processing upload", "filename", header.Filename, "error", err)
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.IsCached {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// handleListInvoices returns a page of invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	invoices, err := s.service.ListInvoices(skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	inv, err := s.service.GetInvoice(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleGetInvoiceByHash returns the invoice matching a content hash
func (s *Server) handleGetInvoiceByHash(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.GetInvoiceByHash(r.PathValue("hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// handleGetInvoiceFile returns the originally uploaded blob
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, name, err := s.service.GetInvoiceFile(id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", mimeFromName(name))
	w.Write(data)
}

// handleDeleteInvoice deletes an invoice and its blob
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.DeleteInvoice(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCacheStats reports duplicate-detection totals
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.CacheStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type reportRequest struct {
	StartDate  Date   `json:"start_date"`
	EndDate    Date   `json:"end_date"`
	ReportType string `json:"report_type"`
}

// handleGenerateReport builds a PDF report for a date range and streams
// it back as an attachment.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, NewValidationError("invalid request body; expected start_date, end_date, report_type", err))
		return
	}

	path, name, err := s.service.GenerateReport(req.StartDate, req.EndDate, req.ReportType)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename=`+name)
	http.ServeFile(w, r, path)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, NewValidationError("invoice id must be a positive integer", err)
	}
	return uint(id), nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// mimeFromName guesses a content type from a filename extension.
func mimeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
