package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	commandapp "gse-control/internal/commands/application"
	commands "gse-control/internal/commands/domain"
	"gse-control/internal/control"
	telemetry "gse-control/internal/telemetry/domain"
)

// Handler provides command HTTP endpoints.
type Handler struct {
	core    *control.Core
	service *commandapp.Service
}

// NewHandler constructs a handler.
func NewHandler(core *control.Core, service *commandapp.Service) (*Handler, error) {
	if core == nil {
		return nil, errors.New("commands handler: nil core")
	}
	if service == nil {
		return nil, errors.New("commands handler: nil service")
	}
	return &Handler{core: core, service: service}, nil
}

type executionReport struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ServeHTTP handles /api/v1/commands, /api/v1/commands/{id}, and
// /api/v1/commands/{id}/result.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/commands"), "/")
	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleSubmit(w, r)
	case rest == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case strings.HasSuffix(rest, "/result") && r.Method == http.MethodPost:
		h.handleResult(w, r, strings.TrimSuffix(rest, "/result"))
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		h.handleGet(w, r, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req commandapp.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	admission, err := h.core.SubmitCommand(r.Context(), req)
	if err != nil {
		if errors.Is(err, telemetry.ErrUnknownDevice) {
			http.Error(w, "unknown device", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := http.StatusAccepted
	if !admission.Admitted {
		status = http.StatusConflict
	}
	writeJSON(w, status, admission)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request, commandID string) {
	var report executionReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	cmd, err := h.core.ReportExecutionResult(r.Context(), commandID, report.Success, report.Error)
	if err != nil {
		if errors.Is(err, commands.ErrNotFound) {
			http.Error(w, "command not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, commandID string) {
	cmd, err := h.service.Get(r.Context(), commandID)
	if err != nil {
		if errors.Is(err, commands.ErrNotFound) {
			http.Error(w, "command not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
