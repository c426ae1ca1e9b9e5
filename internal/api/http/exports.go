package apihttp

import (
	"errors"
	"net/http"
	"strings"

	"gse-control/internal/analytics"
	alarms "gse-control/internal/alarms/domain"
	"gse-control/internal/report"
)

// ExportsHandler serves alarm report downloads.
type ExportsHandler struct {
	service *analytics.Service
	repo    alarms.Repository
}

// NewExportsHandler constructs a handler.
func NewExportsHandler(service *analytics.Service, repo alarms.Repository) (*ExportsHandler, error) {
	if service == nil {
		return nil, errors.New("exports handler: nil analytics service")
	}
	if repo == nil {
		return nil, errors.New("exports handler: nil alarm repository")
	}
	return &ExportsHandler{service: service, repo: repo}, nil
}

// ServeHTTP handles GET /api/v1/exports/alarms.pdf and alarms.xlsx.
func (h *ExportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	format := ""
	switch {
	case strings.HasSuffix(r.URL.Path, "alarms.pdf"):
		format = report.FormatPDF
	case strings.HasSuffix(r.URL.Path, "alarms.xlsx"):
		format = report.FormatXLSX
	default:
		w.WriteHeader(http.StatusNotFound)
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

	summary, err := h.service.Summarize(r.Context(), from, to)
	if err != nil {
		http.Error(w, "analytics error", http.StatusInternalServerError)
		return
	}
	list, err := h.repo.ListAll(r.Context())
	if err != nil {
		http.Error(w, "list alarms error", http.StatusInternalServerError)
		return
	}

	var body []byte
	contentType := ""
	switch format {
	case report.FormatPDF:
		contentType = "application/pdf"
		body, err = report.BuildAlarmReportPDF(summary, list)
	case report.FormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		body, err = report.BuildAlarmReportXLSX(summary, list)
	}
	if err != nil {
		http.Error(w, "render report error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=alarms."+format)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
