package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"hed/internal/export"
	"hed/internal/models"
	"hed/internal/providers"
	"hed/internal/services"
)

// sampleLookbackDays is the window of the trend queries run after a manual export.
const sampleLookbackDays = 7

// Exporter is the one-shot counterpart of App: it runs yesterday's export
// and a few sample trend queries, then returns.
type Exporter struct {
	pipeline  *export.Pipeline
	analytics services.AnalyticsServiceInterface
	logger    providers.Logger
	now       func() time.Time
}

func NewExporter(pipeline *export.Pipeline, analytics services.AnalyticsServiceInterface, logger providers.Logger) *Exporter {
	return &Exporter{
		pipeline:  pipeline,
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
	}
}

// Run writes a human readable report to stdout and failures to stderr. The
// sample queries run whenever a manifest was produced, so a partial export
// still reports the trends of the categories that landed. Any non-nil error
// means the process should exit non-zero.
func (e *Exporter) Run(ctx context.Context, stdout, stderr io.Writer) error {
	window := models.DailyWindow(e.now())
	manifest, err := e.pipeline.RunExport(ctx, window)
	if manifest == nil {
		fmt.Fprintf(stderr, "Export for %s failed: %s\n", window.Date(), err)
		return err
	}

	fmt.Fprintf(stdout, "Export for %s (%s)\n", manifest.Window.Date(), manifest.Status())
	fmt.Fprintf(stdout, "  archive %s: %s\n", manifest.FileName, sinkLine(manifest.Archive))
	for _, c := range manifest.Categories {
		fmt.Fprintf(stdout, "  %-16s %d records, %d dropped: %s\n", c.Table, c.Count, c.Dropped, sinkLine(c.Warehouse))
	}
	if err != nil {
		fmt.Fprintf(stderr, "Export for %s did not complete: %s\n", window.Date(), err)
	}

	samples := []struct {
		name string
		run  func(context.Context, int) ([]map[string]any, error)
	}{
		{"nutrition", e.analytics.NutritionTrends},
		{"exercise", e.analytics.ExerciseTrends},
		{"sleep", e.analytics.SleepTrends},
	}
	queryErrs := []error{err}
	for _, s := range samples {
		rows, qerr := s.run(ctx, sampleLookbackDays)
		if qerr != nil {
			e.logger.Errorf(providers.TypeApp, "Sample %s query failed: %s", s.name, qerr)
			fmt.Fprintf(stderr, "%s trends query failed: %s\n", s.name, qerr)
			queryErrs = append(queryErrs, fmt.Errorf("%s trends: %w", s.name, qerr))
			continue
		}
		fmt.Fprintf(stdout, "%s trends (%d days): %d rows\n", s.name, sampleLookbackDays, len(rows))
	}
	return errors.Join(queryErrs...)
}

func sinkLine(r models.SinkResult) string {
	if r.Ok() {
		return "ok"
	}
	return "FAILED " + r.Error
}
