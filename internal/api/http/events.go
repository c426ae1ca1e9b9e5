package apihttp

import (
	"errors"
	"net/http"
	"strconv"

	"gse-control/internal/events"
)

// EventsHandler serves operations log queries.
type EventsHandler struct {
	store events.Store
}

// NewEventsHandler constructs a handler.
func NewEventsHandler(store events.Store) (*EventsHandler, error) {
	if store == nil {
		return nil, errors.New("events handler: nil store")
	}
	return &EventsHandler{store: store}, nil
}

// ServeHTTP handles GET /api/v1/events.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}
	list, err := h.store.List(r.Context(), r.URL.Query().Get("device_id"), r.URL.Query().Get("type"), from, to, limit)
	if err != nil {
		http.Error(w, "query events error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
