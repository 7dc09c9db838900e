package report

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	readings "maintenance-cloud/internal/readings/domain"
)

func sampleSummaries() []readings.ReadingSummary {
	return []readings.ReadingSummary{
		{
			EventTime:            time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
			MachineID:            "M002",
			MachineType:          "CNC",
			ProductionLineID:     "L1",
			OperationalMode:      "Auto",
			ComponentHealthScore: 0.91,
			RUL:                  310,
			TTF:                  120,
			Inference: &readings.Inference{
				FailureProbability: 0.83,
				PredictedFailure:   true,
				ModelVersion:       "v1.0-production",
				ConfidenceLevel:    readings.ConfidenceVeryHigh,
			},
		},
		{
			EventTime:        time.Date(2026, 3, 14, 8, 31, 0, 0, time.UTC),
			MachineID:        "M002",
			MachineType:      "CNC",
			ProductionLineID: "L1",
			OperationalMode:  "Auto",
		},
	}
}

func TestBuildReadingsXLSX(t *testing.T) {
	data, err := BuildReadingsXLSX("M002", sampleSummaries())
	if err != nil {
		t.Fatalf("BuildReadingsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	machine, err := f.GetCellValue("readings", "B2")
	if err != nil {
		t.Fatalf("read B2: %v", err)
	}
	if machine != "M002" {
		t.Fatalf("B2 = %q, want M002", machine)
	}
	confidence, err := f.GetCellValue("readings", "K2")
	if err != nil {
		t.Fatalf("read K2: %v", err)
	}
	if confidence != "VERY_HIGH" {
		t.Fatalf("K2 = %q, want VERY_HIGH", confidence)
	}
	// No inference: prediction columns stay empty.
	probability, err := f.GetCellValue("readings", "I3")
	if err != nil {
		t.Fatalf("read I3: %v", err)
	}
	if probability != "" {
		t.Fatalf("I3 = %q, want empty", probability)
	}
}

func TestBuildHealthPDF(t *testing.T) {
	overview := []readings.MachineHealth{
		{MachineID: "M001", Readings: 120, AvgFailureProbability: 0.12, PredictedFailures: 3, LastSeen: time.Now()},
		{MachineID: "M002", Readings: 98, AvgFailureProbability: 0.44, PredictedFailures: 17, LastSeen: time.Now()},
	}
	data, err := BuildHealthPDF(overview, time.Now())
	if err != nil {
		t.Fatalf("BuildHealthPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not start with %%PDF: %q", data[:8])
	}
}

type stubQuery struct {
	summaries []readings.ReadingSummary
	overview  []readings.MachineHealth
	err       error
}

func (q *stubQuery) ListByMachine(context.Context, string, time.Time, time.Time, int) ([]readings.ReadingSummary, error) {
	return q.summaries, q.err
}

func (q *stubQuery) MachineOverview(context.Context) ([]readings.MachineHealth, error) {
	return q.overview, q.err
}

func TestExportReadingsXLSXHandler(t *testing.T) {
	handler := NewExportReadingsXLSXHandler(&stubQuery{summaries: sampleSummaries()})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/exports/readings.xlsx?machine=M002&from=2026-03-14T00:00:00Z&to=2026-03-15T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("Content-Type = %q", got)
	}
	if _, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("response is not a workbook: %v", err)
	}
}

func TestExportReadingsXLSXHandlerValidation(t *testing.T) {
	handler := NewExportReadingsXLSXHandler(&stubQuery{})
	cases := map[string]string{
		"missingMachine": "/x?from=2026-03-14T00:00:00Z&to=2026-03-15T00:00:00Z",
		"missingFrom":    "/x?machine=M002&to=2026-03-15T00:00:00Z",
		"badFrom":        "/x?machine=M002&from=yesterday&to=2026-03-15T00:00:00Z",
		"invertedRange":  "/x?machine=M002&from=2026-03-15T00:00:00Z&to=2026-03-14T00:00:00Z",
		"badLimit":       "/x?machine=M002&from=2026-03-14T00:00:00Z&to=2026-03-15T00:00:00Z&limit=-1",
	}
	for name, target := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestExportReadingsXLSXHandlerQueryError(t *testing.T) {
	handler := NewExportReadingsXLSXHandler(&stubQuery{err: errors.New("db down")})
	req := httptest.NewRequest(http.MethodGet,
		"/x?machine=M002&from=2026-03-14T00:00:00Z&to=2026-03-15T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHealthPDFHandler(t *testing.T) {
	handler := NewHealthPDFHandler(&stubQuery{overview: []readings.MachineHealth{{MachineID: "M001"}}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/health.pdf", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("Content-Type = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("response is not a PDF")
	}
}

func TestHandlersRejectNonGET(t *testing.T) {
	xlsx := NewExportReadingsXLSXHandler(&stubQuery{})
	pdf := NewHealthPDFHandler(&stubQuery{})
	for _, h := range []http.Handler{xlsx, pdf} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	}
}
