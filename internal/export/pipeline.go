package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
)

var (
	ErrRunInProgress = errors.New("an export overlapping this window is already running")
	ErrPartialExport = errors.New("export partially failed")
	ErrExportFailed  = errors.New("export failed")
)

// Pipeline runs one export: read, anonymize, then archive and warehouse in
// parallel. The scheduler and the manual triggers share it.
type Pipeline struct {
	store      interfaces.RecordStore
	anonymizer *Anonymizer
	archive    *ArchiveWriter
	loader     *WarehouseLoader
	ledger     *ManifestLedger
	retrier    *Retrier
	metrics    providers.MetricsProviderInterface
	logger     providers.Logger
	now        func() time.Time

	mu        sync.Mutex
	active    map[string]models.ExportWindow
	running   *atomic.Int32
	archiveOK *atomic.Bool
	listeners []func(*models.ExportManifest)
}

func NewPipeline(
	store interfaces.RecordStore,
	anonymizer *Anonymizer,
	archive *ArchiveWriter,
	loader *WarehouseLoader,
	ledger *ManifestLedger,
	retrier *Retrier,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) *Pipeline {
	return &Pipeline{
		store:      store,
		anonymizer: anonymizer,
		archive:    archive,
		loader:     loader,
		ledger:     ledger,
		retrier:    retrier,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		active:     make(map[string]models.ExportWindow),
		running:    atomic.NewInt32(0),
		archiveOK:  atomic.NewBool(false),
	}
}

// OnManifest registers a callback invoked after every completed run.
func (p *Pipeline) OnManifest(fn func(*models.ExportManifest)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Init prepares the archive destination and the warehouse. Runs call it
// lazily, so calling it at startup only surfaces problems earlier.
func (p *Pipeline) Init(ctx context.Context) (InitReport, error) {
	if err := p.ensureArchive(ctx); err != nil {
		return InitReport{}, err
	}
	report, err := p.loader.EnsureInitialized(ctx)
	if err != nil {
		return report, err
	}
	if report.DatasetCreated || len(report.TablesCreated) > 0 {
		p.logger.Infof(providers.TypeApp, "Warehouse initialised: dataset created=%t, tables=%v", report.DatasetCreated, report.TablesCreated)
	}
	return report, nil
}

func (p *Pipeline) ensureArchive(ctx context.Context) error {
	if p.archiveOK.Load() {
		return nil
	}
	if err := p.archive.EnsureReady(ctx); err != nil {
		return fmt.Errorf("prepare archive: %w", err)
	}
	p.archiveOK.Store(true)
	return nil
}

// Running reports whether any export is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load() > 0
}

func (p *Pipeline) acquire(window models.ExportWindow) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.active {
		if w.Overlaps(window) {
			return fmt.Errorf("%w: %s", ErrRunInProgress, w)
		}
	}
	p.active[window.String()] = window
	p.running.Inc()
	return nil
}

func (p *Pipeline) release(window models.ExportWindow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, window.String())
	p.running.Dec()
}

// RunExport exports every record of the window. A read failure aborts the
// run and returns no manifest. Sink failures are reported in the manifest
// and summarised by ErrPartialExport or ErrExportFailed.
func (p *Pipeline) RunExport(ctx context.Context, window models.ExportWindow) (*models.ExportManifest, error) {
	if err := p.acquire(window); err != nil {
		return nil, err
	}
	defer p.release(window)

	start := p.now()
	exportedAt := start.UTC()
	runID := uuid.NewString()
	p.logger.Infof(providers.TypeExport, "Export %s started for %s", runID, window)

	var batch models.RecordBatch
	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		batch, err = p.store.GetRecordsForExport(ctx, window.Start, window.EndExclusive())
		return err
	})
	if err != nil {
		p.logger.Errorf(providers.TypeExport, "Export %s aborted, reading records failed: %s", runID, err)
		p.metrics.ObserveExportDuration(string(models.StatusFailed), p.now().Sub(start))
		return nil, fmt.Errorf("read records for %s: %w", window, err)
	}

	anonymized := make(map[models.Category][]models.AnonymizedRecord, len(models.AllCategories()))
	dropped := make(map[models.Category]int)
	for _, category := range models.AllCategories() {
		rows, drops := p.anonymizer.Anonymize(category, batch[category], exportedAt)
		anonymized[category] = rows
		dropped[category] = drops.Total()
		if drops.Total() > 0 {
			p.logger.Warnf(providers.TypeExport, "Export %s dropped %d malformed %s records: %v", runID, drops.Total(), category, drops)
			p.metrics.AddRecordsDropped(string(category), drops.Total())
		}
	}

	manifest := &models.ExportManifest{
		RunID:      runID,
		Window:     window,
		FileName:   window.ArchiveFileName(),
		ExportedAt: exportedAt,
	}

	var g errgroup.Group
	g.Go(func() error {
		manifest.ArchivePath, manifest.Archive = p.writeArchive(ctx, manifest.FileName, anonymized, exportedAt)
		return nil
	})
	g.Go(func() error {
		manifest.Categories = p.loadWarehouse(ctx, anonymized)
		return nil
	})
	_ = g.Wait()

	for i := range manifest.Categories {
		manifest.Categories[i].Dropped = dropped[manifest.Categories[i].Category]
	}
	manifest.FinishedAt = p.now().UTC()

	p.finish(manifest, start)

	switch manifest.Status() {
	case models.StatusFailed:
		return manifest, fmt.Errorf("%w: %s", ErrExportFailed, manifest.FailureSummary())
	case models.StatusPartial:
		return manifest, fmt.Errorf("%w: %s", ErrPartialExport, manifest.FailureSummary())
	}
	return manifest, nil
}

func (p *Pipeline) writeArchive(ctx context.Context, fileName string, batch map[models.Category][]models.AnonymizedRecord, exportedAt time.Time) (string, models.SinkResult) {
	if err := p.ensureArchive(ctx); err != nil {
		return "", models.Failed(err)
	}
	path, err := p.archive.Write(ctx, fileName, NewArchivePayload(batch), exportedAt)
	if err != nil {
		return path, models.Failed(err)
	}
	total := 0
	for _, rows := range batch {
		total += len(rows)
	}
	return path, models.Succeeded(total)
}

func (p *Pipeline) loadWarehouse(ctx context.Context, batch map[models.Category][]models.AnonymizedRecord) []models.CategoryResult {
	if _, err := p.loader.EnsureInitialized(ctx); err != nil {
		p.logger.Errorf(providers.TypeExport, "Warehouse initialisation failed: %s", err)
		results := make([]models.CategoryResult, 0, len(models.AllCategories()))
		for _, c := range models.AllCategories() {
			results = append(results, models.CategoryResult{
				Category:  c,
				Table:     c.Table(),
				Count:     len(batch[c]),
				Warehouse: models.Failed(err),
			})
		}
		return results
	}
	return p.loader.Load(ctx, batch)
}

func (p *Pipeline) finish(m *models.ExportManifest, start time.Time) {
	status := m.Status()
	p.metrics.ObserveExportDuration(string(status), m.FinishedAt.Sub(start))
	if !m.Archive.Ok() {
		p.metrics.IncSinkFailures("all", "archive")
	}
	for _, c := range m.Categories {
		if c.Warehouse.Ok() {
			p.metrics.AddRecordsExported(string(c.Category), c.Count)
		} else {
			p.metrics.IncSinkFailures(string(c.Category), "warehouse")
		}
	}
	if status == models.StatusSucceeded {
		p.metrics.SetLastSuccessfulExport(m.FinishedAt)
	}

	p.ledger.Record(m)

	if status == models.StatusSucceeded {
		p.logger.Infof(providers.TypeExport, "Export %s for %s succeeded: %v", m.RunID, m.Window.Date(), m.Counts())
	} else {
		p.logger.Errorf(providers.TypeExport, "Export %s for %s %s: %s", m.RunID, m.Window.Date(), status, m.FailureSummary())
	}

	p.mu.Lock()
	listeners := append([]func(*models.ExportManifest){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(m)
	}
}
