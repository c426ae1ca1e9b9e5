package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"gse-control/internal/control"
	telemetry "gse-control/internal/telemetry/domain"
)

// TelemetryHandler serves telemetry ingest and history queries.
type TelemetryHandler struct {
	core    *control.Core
	history telemetry.Repository
}

// NewTelemetryHandler constructs a handler. The history repository may be
// nil when no database is configured.
func NewTelemetryHandler(core *control.Core, history telemetry.Repository) (*TelemetryHandler, error) {
	if core == nil {
		return nil, errors.New("telemetry handler: nil core")
	}
	return &TelemetryHandler{core: core, history: history}, nil
}

// ServeHTTP handles /api/v1/telemetry and /api/v1/telemetry/batch.
func (h *TelemetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	batch := strings.HasSuffix(r.URL.Path, "/batch")
	switch {
	case r.Method == http.MethodPost && batch:
		h.handleBatch(w, r)
	case r.Method == http.MethodPost:
		h.handleIngest(w, r)
	case r.Method == http.MethodGet && !batch:
		h.handleQuery(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *TelemetryHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var point telemetry.Point
	if err := json.NewDecoder(r.Body).Decode(&point); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	result, err := h.core.Ingest(r.Context(), point)
	if err != nil {
		http.Error(w, err.Error(), ingestStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TelemetryHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var points []telemetry.Point
	if err := json.NewDecoder(r.Body).Decode(&points); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.core.IngestBatch(r.Context(), points))
}

func (h *TelemetryHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "telemetry history not configured", http.StatusServiceUnavailable)
		return
	}
	deviceID := r.URL.Query().Get("device_id")
	parameter := r.URL.Query().Get("parameter")
	if deviceID == "" || parameter == "" {
		http.Error(w, "device_id and parameter are required", http.StatusBadRequest)
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
	if to.IsZero() {
		to = time.Now().UTC()
	}
	points, err := h.history.QueryRange(r.Context(), deviceID, parameter, from, to)
	if err != nil {
		http.Error(w, "query telemetry error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, telemetry.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, telemetry.ErrUnknownParameter), errors.Is(err, telemetry.ErrBadTimestamp):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
