package apihttp

import (
	"errors"
	"net/http"
	"strings"

	"gse-control/internal/control"
	telemetry "gse-control/internal/telemetry/domain"
)

// DevicesHandler serves device state queries.
type DevicesHandler struct {
	core *control.Core
}

// NewDevicesHandler constructs a handler.
func NewDevicesHandler(core *control.Core) (*DevicesHandler, error) {
	if core == nil {
		return nil, errors.New("devices handler: nil core")
	}
	return &DevicesHandler{core: core}, nil
}

type deviceStateResponse struct {
	DeviceID  string             `json:"device_id"`
	Mode      string             `json:"mode"`
	Status    string             `json:"status"`
	Telemetry map[string]float64 `json:"latest_telemetry,omitempty"`
}

// ServeHTTP handles GET /api/v1/devices and /api/v1/devices/{id}/state.
func (h *DevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/devices"), "/")
	if rest == "" {
		writeJSON(w, http.StatusOK, h.core.Devices())
		return
	}
	deviceID, found := strings.CutSuffix(rest, "/state")
	if !found || deviceID == "" || strings.Contains(deviceID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	state, err := h.core.DeviceState(deviceID)
	if err != nil {
		if errors.Is(err, telemetry.ErrUnknownDevice) {
			http.Error(w, "unknown device", http.StatusNotFound)
			return
		}
		http.Error(w, "device state error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, deviceStateResponse{
		DeviceID:  state.DeviceID,
		Mode:      string(state.Mode),
		Status:    string(state.Status),
		Telemetry: h.core.LatestTelemetry(deviceID),
	})
}
