package controllers

import (
	"bytes"
	"net/http"
	"strconv"

	"go-bnpl/services"

	"go.uber.org/zap"
)

// ReportController serves the admin receivables reports
type ReportController struct {
	Reports *services.ReportService
	Sweeper *services.OverdueSweeper
	Log     *zap.Logger
}

func NewReportController(reports *services.ReportService, sweeper *services.OverdueSweeper, log *zap.Logger) *ReportController {
	return &ReportController{Reports: reports, Sweeper: sweeper, Log: log}
}

// Summary reports sales and BNPL receivables
func (rc *ReportController) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	summary, err := rc.Reports.Summary(ctx)
	if err != nil {
		writeError(w, rc.Log, err, "Error building report")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Schedules lists installment and fixed-duration dues, filtered by ?status=
func (rc *ReportController) Schedules(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	rows, err := rc.Reports.Schedules(ctx, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, rc.Log, err, "Error building schedules")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ExportSchedules downloads the schedules as an Excel workbook
func (rc *ReportController) ExportSchedules(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	var buf bytes.Buffer
	if err := rc.Reports.ExportSchedules(ctx, &buf, r.URL.Query().Get("status")); err != nil {
		writeError(w, rc.Log, err, "Failed to write Excel file")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=schedules.xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		rc.Log.Warn("failed to send schedules export", zap.Error(err))
	}
}

// Sweep accrues overdue penalties now instead of waiting for the next tick
func (rc *ReportController) Sweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := rc.Sweeper.Sweep(ctx)
	if err != nil {
		writeError(w, rc.Log, err, "Error running overdue sweep")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
