package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gse-control/internal/analytics"
	alarms "gse-control/internal/alarms/domain"
	alarmmemory "gse-control/internal/alarms/infrastructure/memory"
	"gse-control/internal/events"
)

func TestEventsHandlerFilters(t *testing.T) {
	store := events.NewMemoryStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, deviceID := range []string{"gpu-01", "cryo-01"} {
		err := store.Append(context.Background(), events.Event{
			ID:         events.NewID(),
			EventType:  "AlarmRaised",
			DeviceID:   deviceID,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	handler, err := NewEventsHandler(store)
	if err != nil {
		t.Fatalf("NewEventsHandler: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?device_id=gpu-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list []events.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].DeviceID != "gpu-01" {
		t.Fatalf("unexpected events: %+v", list)
	}
}

func TestEventsHandlerRejectsBadLimit(t *testing.T) {
	handler, err := NewEventsHandler(events.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewEventsHandler: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=banana", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyticsHandler(t *testing.T) {
	repo := alarmmemory.NewRepository()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	alarm := alarms.Alarm{
		ID: "alm-1", DeviceID: "gpu-01", Parameter: "voltage",
		Type: alarms.TypeThresholdHigh, Severity: alarms.SeverityFault,
		Status: alarms.StatusCleared, TriggeredAt: base,
		AckedAt: base.Add(time.Minute), ClearedAt: base.Add(10 * time.Minute),
		Duration: 10 * time.Minute,
	}
	if err := repo.Create(context.Background(), &alarm); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc, err := analytics.NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := NewAnalyticsHandler(svc)
	if err != nil {
		t.Fatalf("NewAnalyticsHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/alarms", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var summary analytics.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TotalAlarms != 1 || summary.MTTA != time.Minute {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestExportsHandlerPDF(t *testing.T) {
	repo := alarmmemory.NewRepository()
	svc, err := analytics.NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := NewExportsHandler(svc, repo)
	if err != nil {
		t.Fatalf("NewExportsHandler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/alarms.pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
}
