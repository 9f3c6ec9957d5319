package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"hed/internal/export"
	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
)

const (
	manifestCachePrefix = "manifest:"
	latestCacheKey      = manifestCachePrefix + "latest"
)

type ExportController struct {
	logger    providers.Logger
	scheduler interfaces.SchedulerInterface
	ledger    ManifestReader
	cache     providers.CacheProviderInterface
	now       func() time.Time
}

func NewExportController(logger providers.Logger, scheduler interfaces.SchedulerInterface, ledger ManifestReader, cache providers.CacheProviderInterface) *ExportController {
	return &ExportController{
		logger:    logger,
		scheduler: scheduler,
		ledger:    ledger,
		cache:     cache,
		now:       time.Now,
	}
}

func parseRange(start, end string) (models.ExportWindow, error) {
	from, err := models.ParseTimestamp(start)
	if err != nil {
		return models.ExportWindow{}, fmt.Errorf("%w: start: %w", models.ErrInvalidWindow, err)
	}
	to, err := models.ParseTimestamp(end)
	if err != nil {
		return models.ExportWindow{}, fmt.Errorf("%w: end: %w", models.ErrInvalidWindow, err)
	}
	return models.NewExportWindow(from, to)
}

// Invalidate drops cached manifests touched by a finished run.
func (ec *ExportController) Invalidate(m *models.ExportManifest) {
	ec.cache.Del(manifestCachePrefix + m.Window.Date())
	ec.cache.Del(latestCacheKey)
}

// RunExport triggers an export for ?date=YYYY-MM-DD, for an ad-hoc
// ?start=&end= range, or for yesterday when neither is given. The run is not
// tied to the client connection.
func (ec *ExportController) RunExport(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	q := r.URL.Query()

	var (
		manifest *models.ExportManifest
		err      error
	)
	switch {
	case q.Get("date") != "":
		window, perr := models.ParseWindowDate(q.Get("date"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		manifest, err = ec.scheduler.TriggerWindow(ctx, window)
	case q.Has("start") || q.Has("end"):
		window, perr := parseRange(q.Get("start"), q.Get("end"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		manifest, err = ec.scheduler.TriggerWindow(ctx, window)
	default:
		manifest, err = ec.scheduler.Trigger(ctx, ec.now())
	}

	switch {
	case errors.Is(err, export.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil && manifest == nil:
		ec.logger.Errorf(providers.TypeExport, "Manual export failed: %s", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, manifest)
	default:
		writeJSON(w, http.StatusOK, manifest)
	}
}

func (ec *ExportController) serveManifest(w http.ResponseWriter, cacheKey string, lookup func() (*models.ExportManifest, bool)) {
	if data, ok := ec.cache.Get(cacheKey); ok {
		writeRaw(w, http.StatusOK, data)
		return
	}

	manifest, ok := lookup()
	if !ok {
		writeError(w, http.StatusNotFound, "no export recorded")
		return
	}

	gson, err := json.Marshal(manifest)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ec.cache.Set(cacheKey, gson)
	writeRaw(w, http.StatusOK, gson)
}

func (ec *ExportController) GetManifest(w http.ResponseWriter, r *http.Request) {
	window, err := models.ParseWindowDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date := window.Date()
	ec.serveManifest(w, manifestCachePrefix+date, func() (*models.ExportManifest, bool) {
		return ec.ledger.Get(date)
	})
}

func (ec *ExportController) GetLatest(w http.ResponseWriter, r *http.Request) {
	ec.serveManifest(w, latestCacheKey, ec.ledger.Latest)
}
