package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	alarmapp "gse-control/internal/alarms/application"
	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/control"
)

// Handler provides alarm HTTP endpoints.
type Handler struct {
	core    *control.Core
	manager *alarmapp.Manager
}

// NewHandler constructs a handler.
func NewHandler(core *control.Core, manager *alarmapp.Manager) (*Handler, error) {
	if core == nil {
		return nil, errors.New("alarms handler: nil core")
	}
	if manager == nil {
		return nil, errors.New("alarms handler: nil manager")
	}
	return &Handler{core: core, manager: manager}, nil
}

// ServeHTTP handles /api/v1/alarms and /api/v1/alarms/{id}/ack.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/alarms"), "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case rest == "history" && r.Method == http.MethodGet:
		h.handleHistory(w, r)
	case strings.HasSuffix(rest, "/ack") && r.Method == http.MethodPost:
		h.handleAcknowledge(w, r, strings.TrimSuffix(rest, "/ack"))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.core.ActiveAlarms(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		http.Error(w, "list alarms error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	list, err := h.manager.History(r.Context())
	if err != nil {
		http.Error(w, "alarm history error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type acknowledgeRequest struct {
	Operator string `json:"operator"`
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request, alarmID string) {
	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Operator == "" {
		http.Error(w, "operator is required", http.StatusBadRequest)
		return
	}
	alarm, err := h.core.AcknowledgeAlarm(r.Context(), alarmID, req.Operator)
	if err != nil {
		if errors.Is(err, alarms.ErrNotFound) {
			http.Error(w, "alarm not found", http.StatusNotFound)
			return
		}
		http.Error(w, "acknowledge error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alarm)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
