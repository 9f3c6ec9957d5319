package controllers

import (
	"fmt"
	"net/http"
	"time"
)

// RunReporter tells whether an export is in progress.
type RunReporter interface {
	Running() bool
}

type HealthController struct {
	pipeline  RunReporter
	ledger    ManifestReader
	startTime time.Time
}

type healthResponse struct {
	Status           string  `json:"status"`
	Uptime           string  `json:"uptime"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	ExportRunning    bool    `json:"export_running"`
	LastExportDate   string  `json:"last_export_date,omitempty"`
	LastExportStatus string  `json:"last_export_status,omitempty"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		ExportRunning: hc.pipeline.Running(),
	}
	if last, ok := hc.ledger.Latest(); ok {
		resp.LastExportDate = last.Window.Date()
		resp.LastExportStatus = string(last.Status())
	}

	writeJSON(w, http.StatusOK, resp)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(pipeline RunReporter, ledger ManifestReader) *HealthController {
	return &HealthController{
		pipeline:  pipeline,
		ledger:    ledger,
		startTime: time.Now(),
	}
}
