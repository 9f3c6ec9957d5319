package export

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
)

// InitReport lists the warehouse objects created by EnsureInitialized.
type InitReport struct {
	DatasetCreated bool     `json:"datasetCreated"`
	TablesCreated  []string `json:"tablesCreated"`
}

// WarehouseLoader owns warehouse initialisation and per-category loads.
type WarehouseLoader struct {
	warehouse interfaces.Warehouse
	retrier   *Retrier
	logger    providers.Logger

	initMu      sync.Mutex
	initialized bool
}

func NewWarehouseLoader(warehouse interfaces.Warehouse, retrier *Retrier, logger providers.Logger) *WarehouseLoader {
	return &WarehouseLoader{warehouse: warehouse, retrier: retrier, logger: logger}
}

// EnsureInitialized creates the dataset and the category tables that are
// missing. Once it has succeeded, later calls return an empty report.
func (l *WarehouseLoader) EnsureInitialized(ctx context.Context) (InitReport, error) {
	l.initMu.Lock()
	defer l.initMu.Unlock()

	report := InitReport{TablesCreated: []string{}}
	if l.initialized {
		return report, nil
	}

	exists, err := l.datasetExists(ctx)
	if err != nil {
		return report, fmt.Errorf("check dataset: %w", err)
	}
	if !exists {
		created, err := l.createIgnoringConflict(ctx, l.warehouse.CreateDataset)
		if err != nil {
			return report, fmt.Errorf("create dataset: %w", err)
		}
		report.DatasetCreated = created
	}

	for _, schema := range models.Schemas() {
		schema := schema
		var exists bool
		err := l.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			exists, err = l.warehouse.TableExists(ctx, schema.Name)
			return err
		})
		if err != nil {
			return report, fmt.Errorf("check table %s: %w", schema.Name, err)
		}
		if exists {
			continue
		}
		created, err := l.createIgnoringConflict(ctx, func(ctx context.Context) error {
			return l.warehouse.CreateTable(ctx, schema)
		})
		if err != nil {
			return report, fmt.Errorf("create table %s: %w", schema.Name, err)
		}
		if created {
			report.TablesCreated = append(report.TablesCreated, schema.Name)
			l.logger.Infof(providers.TypeExport, "Created warehouse table %s", schema.Name)
		}
	}

	l.initialized = true
	return report, nil
}

func (l *WarehouseLoader) datasetExists(ctx context.Context) (bool, error) {
	var exists bool
	err := l.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		exists, err = l.warehouse.DatasetExists(ctx)
		return err
	})
	return exists, err
}

// createIgnoringConflict reports false when another writer created the
// object first.
func (l *WarehouseLoader) createIgnoringConflict(ctx context.Context, create func(ctx context.Context) error) (bool, error) {
	err := l.retrier.Do(ctx, create)
	if errors.Is(err, interfaces.ErrAlreadyExists) {
		return false, nil
	}
	return err == nil, err
}

// Load inserts each category independently. A failing category never
// prevents the others from loading. Results follow models.AllCategories order.
func (l *WarehouseLoader) Load(ctx context.Context, batch map[models.Category][]models.AnonymizedRecord) []models.CategoryResult {
	categories := models.AllCategories()
	results := make([]models.CategoryResult, len(categories))

	var g errgroup.Group
	for i, category := range categories {
		i, category := i, category
		rows := batch[category]
		results[i] = models.CategoryResult{Category: category, Table: category.Table(), Count: len(rows)}

		if len(rows) == 0 {
			results[i].Warehouse = models.Succeeded(0)
			continue
		}

		g.Go(func() error {
			schema := models.SchemaFor(category)
			err := l.retrier.Do(ctx, func(ctx context.Context) error {
				return l.warehouse.InsertRows(ctx, schema, rows)
			})
			if err != nil {
				l.logger.Errorf(providers.TypeExport, "Loading %d rows into %s failed: %s", len(rows), schema.Name, err)
				results[i].Warehouse = models.Failed(err)
				return nil
			}
			l.logger.Infof(providers.TypeExport, "Loaded %d rows into %s", len(rows), schema.Name)
			results[i].Warehouse = models.Succeeded(len(rows))
			return nil
		})
	}
	_ = g.Wait()

	return results
}
