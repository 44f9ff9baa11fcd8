package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/formbuilder/internal/auth"
	"github.com/sakif/formbuilder/internal/service"
)

// ReportHandler serves aggregates and CSV downloads.
type ReportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

func NewReportHandler(reports *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// HTTP: GET /api/templates/{id}/aggregate
func (h *ReportHandler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Aggregate(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleExportCSV sends every form of a template as a CSV attachment.
//
// HTTP: GET /api/templates/{id}/export.csv
func (h *ReportHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	export, err := h.reports.ExportCSV(r.Context(), urlParam(r, "id"), auth.ActorFromContext(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		h.logger.Warn("writing CSV export failed", slog.String("error", err.Error()))
	}
}
