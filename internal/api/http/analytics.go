package apihttp

import (
	"errors"
	"net/http"
	"strings"

	"gse-control/internal/analytics"
)

// AnalyticsHandler serves alarm response analytics.
type AnalyticsHandler struct {
	service *analytics.Service
}

// NewAnalyticsHandler constructs a handler.
func NewAnalyticsHandler(service *analytics.Service) (*AnalyticsHandler, error) {
	if service == nil {
		return nil, errors.New("analytics handler: nil service")
	}
	return &AnalyticsHandler{service: service}, nil
}

// ServeHTTP handles GET /api/v1/analytics/alarms, /mttr, and
// /alarm-frequency.
func (h *AnalyticsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
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
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	summary, err := h.service.Summarize(r.Context(), from, to)
	if err != nil {
		http.Error(w, "analytics error", http.StatusInternalServerError)
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/mttr"):
		writeJSON(w, http.StatusOK, map[string]any{
			"from":         summary.From,
			"to":           summary.To,
			"total_alarms": summary.TotalAlarms,
			"acknowledged": summary.Acknowledged,
			"cleared":      summary.Cleared,
			"mtta_ns":      summary.MTTA,
			"mttr_ns":      summary.MTTR,
		})
	case strings.HasSuffix(r.URL.Path, "/alarm-frequency"):
		writeJSON(w, http.StatusOK, summary.DeviceMetrics)
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}
