package report

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"maintenance-cloud/internal/observability/metrics"
	readings "maintenance-cloud/internal/readings/domain"
)

const queryTimeLayout = time.RFC3339

// ExportReadingsXLSXHandler serves readings workbook exports.
type ExportReadingsXLSXHandler struct {
	query readings.ReadingQuery
}

// NewExportReadingsXLSXHandler constructs a ExportReadingsXLSXHandler.
func NewExportReadingsXLSXHandler(query readings.ReadingQuery) *ExportReadingsXLSXHandler {
	return &ExportReadingsXLSXHandler{query: query}
}

// ServeHTTP handles GET /api/v1/exports/readings.xlsx.
func (h *ExportReadingsXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.query == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()

	machineID := r.URL.Query().Get("machine")
	if machineID == "" {
		http.Error(w, "machine is required", http.StatusBadRequest)
		return
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		limit, err = strconv.Atoi(value)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	rows, err := h.query.ListByMachine(r.Context(), machineID, from, to, limit)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, "query readings error", http.StatusInternalServerError)
		return
	}

	data, err := BuildReadingsXLSX(machineID, rows)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, "build export error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.xlsx"`)
	_, _ = w.Write(data)
}

// HealthPDFHandler serves the fleet health PDF report.
type HealthPDFHandler struct {
	query readings.ReadingQuery
}

// NewHealthPDFHandler constructs a HealthPDFHandler.
func NewHealthPDFHandler(query readings.ReadingQuery) *HealthPDFHandler {
	return &HealthPDFHandler{query: query}
}

// ServeHTTP handles GET /api/v1/reports/health.pdf.
func (h *HealthPDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.query == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	start := time.Now()

	overview, err := h.query.MachineOverview(r.Context())
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(start))
		http.Error(w, "query overview error", http.StatusInternalServerError)
		return
	}

	data, err := BuildHealthPDF(overview, time.Now())
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(start))
		http.Error(w, "build report error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="machine-health.pdf"`)
	_, _ = w.Write(data)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(queryTimeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
