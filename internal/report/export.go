// Package report renders alarm summary reports for operators.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"gse-control/internal/analytics"
	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/observability/metrics"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// BuildAlarmReportPDF renders an alarm summary with the full alarm list.
func BuildAlarmReportPDF(summary analytics.Summary, list []alarms.Alarm) ([]byte, error) {
	start := time.Now()

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "GSE Alarm Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s - %s", formatStamp(summary.From), formatStamp(summary.To)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alarms: %d (acknowledged %d, cleared %d)",
		summary.TotalAlarms, summary.Acknowledged, summary.Cleared))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("MTTA: %s", summary.MTTA.Round(time.Second)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("MTTR: %s", summary.MTTR.Round(time.Second)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(35, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Parameter", "1", 0, "C", false, 0, "")
	pdf.CellFormat(42, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(48, 6, "Triggered", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Duration", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alarm := range list {
		duration := "-"
		if alarm.Status == alarms.StatusCleared {
			duration = alarm.Duration.Round(time.Second).String()
		}
		pdf.CellFormat(35, 6, alarm.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, alarm.Parameter, "1", 0, "L", false, 0, "")
		pdf.CellFormat(42, 6, string(alarm.Type), "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, alarm.Severity.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, string(alarm.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(48, 6, formatStamp(alarm.TriggeredAt), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, duration, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		metrics.ObserveReportExport(FormatPDF, metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveReportExport(FormatPDF, metrics.ResultSuccess, time.Since(start))
	return buf.Bytes(), nil
}

// BuildAlarmReportXLSX renders the same report as a workbook with a
// summary sheet, per-device metrics, and the alarm list.
func BuildAlarmReportXLSX(summary analytics.Summary, list []alarms.Alarm) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	summarySheet := "summary"
	devicesSheet := "devices"
	alarmsSheet := "alarms"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(devicesSheet)
	f.NewSheet(alarmsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "GSE Alarm Report")
	_ = f.SetCellValue(summarySheet, "A3", "From")
	_ = f.SetCellValue(summarySheet, "B3", formatStamp(summary.From))
	_ = f.SetCellValue(summarySheet, "A4", "To")
	_ = f.SetCellValue(summarySheet, "B4", formatStamp(summary.To))
	_ = f.SetCellValue(summarySheet, "A5", "Total Alarms")
	_ = f.SetCellValue(summarySheet, "B5", summary.TotalAlarms)
	_ = f.SetCellValue(summarySheet, "A6", "Acknowledged")
	_ = f.SetCellValue(summarySheet, "B6", summary.Acknowledged)
	_ = f.SetCellValue(summarySheet, "A7", "Cleared")
	_ = f.SetCellValue(summarySheet, "B7", summary.Cleared)
	_ = f.SetCellValue(summarySheet, "A8", "MTTA")
	_ = f.SetCellValue(summarySheet, "B8", summary.MTTA.Round(time.Second).String())
	_ = f.SetCellValue(summarySheet, "A9", "MTTR")
	_ = f.SetCellValue(summarySheet, "B9", summary.MTTR.Round(time.Second).String())

	_ = f.SetCellValue(devicesSheet, "A1", "Device")
	_ = f.SetCellValue(devicesSheet, "B1", "Alarms")
	_ = f.SetCellValue(devicesSheet, "C1", "Warnings")
	_ = f.SetCellValue(devicesSheet, "D1", "Faults")
	for i, device := range summary.DeviceMetrics {
		row := i + 2
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("A%d", row), device.DeviceID)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("B%d", row), device.Total)
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("C%d", row), device.BySeverity["WARNING"])
		_ = f.SetCellValue(devicesSheet, fmt.Sprintf("D%d", row), device.BySeverity["FAULT"])
	}

	_ = f.SetCellValue(alarmsSheet, "A1", "ID")
	_ = f.SetCellValue(alarmsSheet, "B1", "Device")
	_ = f.SetCellValue(alarmsSheet, "C1", "Parameter")
	_ = f.SetCellValue(alarmsSheet, "D1", "Type")
	_ = f.SetCellValue(alarmsSheet, "E1", "Severity")
	_ = f.SetCellValue(alarmsSheet, "F1", "Status")
	_ = f.SetCellValue(alarmsSheet, "G1", "Triggered")
	_ = f.SetCellValue(alarmsSheet, "H1", "Acknowledged")
	_ = f.SetCellValue(alarmsSheet, "I1", "Cleared")
	_ = f.SetCellValue(alarmsSheet, "J1", "Duration (s)")
	for i, alarm := range list {
		row := i + 2
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("A%d", row), alarm.ID)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("B%d", row), alarm.DeviceID)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("C%d", row), alarm.Parameter)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("D%d", row), string(alarm.Type))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("E%d", row), alarm.Severity.String())
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("F%d", row), string(alarm.Status))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("G%d", row), formatStamp(alarm.TriggeredAt))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("H%d", row), formatStamp(alarm.AckedAt))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("I%d", row), formatStamp(alarm.ClearedAt))
		if alarm.Status == alarms.StatusCleared {
			_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("J%d", row), alarm.Duration.Seconds())
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		metrics.ObserveReportExport(FormatXLSX, metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveReportExport(FormatXLSX, metrics.ResultSuccess, time.Since(start))
	return buf.Bytes(), nil
}
