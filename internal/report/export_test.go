package report

import (
	"bytes"
	"testing"
	"time"

	"gse-control/internal/analytics"
	alarms "gse-control/internal/alarms/domain"
)

func sampleData() (analytics.Summary, []alarms.Alarm) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	summary := analytics.Summary{
		From:         base,
		To:           base.Add(24 * time.Hour),
		TotalAlarms:  2,
		Acknowledged: 1,
		Cleared:      1,
		MTTA:         3 * time.Minute,
		MTTR:         15 * time.Minute,
		DeviceMetrics: []analytics.DeviceMetrics{
			{DeviceID: "gpu-01", Total: 2, BySeverity: map[string]int{"WARNING": 1, "FAULT": 1}},
		},
	}
	list := []alarms.Alarm{
		{
			ID: "alm-1", DeviceID: "gpu-01", Parameter: "voltage",
			Type: alarms.TypeThresholdHigh, Severity: alarms.SeverityFault,
			Status: alarms.StatusCleared, TriggeredAt: base,
			AckedAt: base.Add(2 * time.Minute), ClearedAt: base.Add(15 * time.Minute),
			Duration: 15 * time.Minute,
		},
		{
			ID: "alm-2", DeviceID: "gpu-01", Parameter: "current",
			Type: alarms.TypeStatisticalAnomaly, Severity: alarms.SeverityWarning,
			Status: alarms.StatusTriggered, TriggeredAt: base.Add(time.Hour),
		},
	}
	return summary, list
}

func TestBuildAlarmReportPDF(t *testing.T) {
	summary, list := sampleData()
	out, err := BuildAlarmReportPDF(summary, list)
	if err != nil {
		t.Fatalf("BuildAlarmReportPDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF, got prefix %q", out[:min(len(out), 8)])
	}
}

func TestBuildAlarmReportXLSX(t *testing.T) {
	summary, list := sampleData()
	out, err := BuildAlarmReportXLSX(summary, list)
	if err != nil {
		t.Fatalf("BuildAlarmReportXLSX: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Fatalf("output is not a zip archive, got prefix %q", out[:min(len(out), 4)])
	}
}
