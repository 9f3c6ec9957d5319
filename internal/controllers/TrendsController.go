package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"hed/internal/providers"
	"hed/internal/services"
)

const defaultLookbackDays = 7

type TrendsController struct {
	logger  providers.Logger
	service services.AnalyticsServiceInterface
}

type trendsResponse struct {
	Kind services.TrendKind `json:"kind"`
	Days int                `json:"days"`
	Rows []map[string]any   `json:"rows"`
}

func NewTrendsController(logger providers.Logger, service services.AnalyticsServiceInterface) *TrendsController {
	return &TrendsController{logger: logger, service: service}
}

// GetTrends serves /trends/{kind}?days=N. Results are always read from the
// warehouse.
func (tc *TrendsController) GetTrends(w http.ResponseWriter, r *http.Request) {
	kind, err := services.ParseTrendKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	days := defaultLookbackDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
	}

	rows, err := tc.service.Trends(r.Context(), kind, days)
	if err != nil {
		if errors.Is(err, services.ErrInvalidLookback) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tc.logger.Errorf(providers.TypeGet, "Trend query %s failed: %s", kind, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	writeJSON(w, http.StatusOK, trendsResponse{Kind: kind, Days: days, Rows: rows})
}
