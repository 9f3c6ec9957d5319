package interfaces

import (
	"context"
	"time"

	"hed/internal/models"
)

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
	Trigger(ctx context.Context, reference time.Time) (*models.ExportManifest, error)
	TriggerWindow(ctx context.Context, window models.ExportWindow) (*models.ExportManifest, error)
}
