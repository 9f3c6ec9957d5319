package export

import (
	"context"
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
	"hed/internal/structures"
)

// dailyAt fires once per day at a fixed UTC wall-clock time.
type dailyAt struct {
	hour, minute int
}

func parseDailyAt(s string) (dailyAt, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return dailyAt{}, err
	}
	return dailyAt{hour: t.Hour(), minute: t.Minute()}, nil
}

// Next implements gron.Schedule.
func (d dailyAt) Next(t time.Time) time.Time {
	u := t.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), d.hour, d.minute, 0, 0, time.UTC)
	if !next.After(u) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

type Scheduler struct {
	config   *structures.Config
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface
	pipeline *Pipeline
	ledger   *ManifestLedger
	cron     *gron.Cron
	opsMu    sync.Mutex
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, pipeline *Pipeline, ledger *ManifestLedger) interfaces.SchedulerInterface {
	return newScheduler(config, logger, metrics, pipeline, ledger)
}

func newScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, pipeline *Pipeline, ledger *ManifestLedger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		pipeline: pipeline,
		ledger:   ledger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	at, err := parseDailyAt(s.config.Export.DailyAt)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Invalid export.dailyAt %q, falling back to 02:00: %s", s.config.Export.DailyAt, err)
		at = dailyAt{hour: 2}
	}

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		if err := s.Persist(); err == nil {
			s.logger.Debugf(providers.TypeApp, "Persisted export ledger to %s", s.config.Persistence.FilePath)
		}
	})

	s.cron.AddFunc(at, func() {
		_, _ = s.RunDaily(s.now())
	})

	s.cron.Start()
	s.logger.Infof(providers.TypeApp, "Daily export scheduled at %02d:%02d UTC", at.hour, at.minute)
}

// RunDaily exports the day before now. Failures are logged; the next run is
// tomorrow's schedule or a manual trigger.
func (s *Scheduler) RunDaily(now time.Time) (*models.ExportManifest, error) {
	manifest, err := s.Trigger(s.ctx, now)
	if err != nil {
		s.logger.Errorf(providers.TypeExport, "Scheduled export for %s: %s", models.DailyWindow(now).Date(), err)
	}
	return manifest, err
}

// Trigger runs the same daily window as the schedule, relative to reference.
func (s *Scheduler) Trigger(ctx context.Context, reference time.Time) (*models.ExportManifest, error) {
	return s.TriggerWindow(ctx, models.DailyWindow(reference))
}

func (s *Scheduler) TriggerWindow(ctx context.Context, window models.ExportWindow) (*models.ExportManifest, error) {
	return s.pipeline.RunExport(ctx, window)
}

func (s *Scheduler) Stop() {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	return s.ledger.LoadFromFile(s.config.Persistence.FilePath)
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	start := time.Now()
	err := s.ledger.SaveToFile(s.config.Persistence.FilePath)
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting export ledger: %s", err)
		return err
	}
	return nil
}
