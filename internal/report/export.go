package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	readings "maintenance-cloud/internal/readings/domain"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// BuildReadingsXLSX renders a readings export workbook with one row per
// reading and its prediction.
func BuildReadingsXLSX(machineID string, rows []readings.ReadingSummary) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "readings"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Event Time",
		"Machine",
		"Type",
		"Line",
		"Mode",
		"Health Score",
		"RUL",
		"TTF",
		"Failure Probability",
		"Predicted Failure",
		"Confidence",
		"Model Version",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}

	for i, row := range rows {
		line := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", line), row.EventTime.Format(exportTimeLayout))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", line), row.MachineID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", line), row.MachineType)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", line), row.ProductionLineID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", line), row.OperationalMode)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", line), row.ComponentHealthScore)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", line), row.RUL)
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", line), row.TTF)
		if row.Inference != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", line), row.Inference.FailureProbability)
			_ = f.SetCellValue(sheet, fmt.Sprintf("J%d", line), row.Inference.PredictedFailure)
			_ = f.SetCellValue(sheet, fmt.Sprintf("K%d", line), string(row.Inference.ConfidenceLevel))
			_ = f.SetCellValue(sheet, fmt.Sprintf("L%d", line), row.Inference.ModelVersion)
		}
	}

	_ = f.SetCellValue(sheet, "N1", "Machine Filter")
	_ = f.SetCellValue(sheet, "N2", machineID)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHealthPDF renders the fleet health overview as a PDF table.
func BuildHealthPDF(overview []readings.MachineHealth, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Machine Health Overview")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Machine", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Readings", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Avg Failure Prob", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Predicted Failures", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Last Seen", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, machine := range overview {
		pdf.CellFormat(30, 6, machine.MachineID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", machine.Readings), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, fmt.Sprintf("%.4f", machine.AvgFailureProbability), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", machine.PredictedFailures), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, machine.LastSeen.UTC().Format(exportTimeLayout), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
