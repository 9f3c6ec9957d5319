package interfaces

//go:generate go run go.uber.org/mock/mockgen@latest -destination=../mocks/mock_stores.go -package=mocks hed/internal/export/interfaces BlobStore,RecordStore

import (
	"context"
	"errors"
	"time"

	"hed/internal/models"
)

// ErrAlreadyExists marks a create that lost a race or repeated a previous
// create. Callers initialising schemas treat it as success.
var ErrAlreadyExists = errors.New("already exists")

// ErrInvalidRow marks a record that cannot be converted to its table's
// columns. Retrying the same rows cannot succeed.
var ErrInvalidRow = errors.New("invalid row")

// RecordStore is the read side of the primary health record store.
type RecordStore interface {
	// GetRecordsForExport returns every record whose event time falls in
	// [startInclusive, endExclusive), grouped by category.
	GetRecordsForExport(ctx context.Context, startInclusive, endExclusive time.Time) (models.RecordBatch, error)
}

// BlobStore is a durable object store with atomic whole-object writes.
type BlobStore interface {
	// EnsureReady prepares the destination (bucket or directory). Idempotent.
	EnsureReady(ctx context.Context) error
	Put(ctx context.Context, path string, body []byte, contentType string, metadata map[string]string) error
}

// Warehouse is the analytical store receiving anonymized rows.
type Warehouse interface {
	DatasetExists(ctx context.Context) (bool, error)
	CreateDataset(ctx context.Context) error
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, schema models.TableSchema) error
	InsertRows(ctx context.Context, schema models.TableSchema, rows []models.AnonymizedRecord) error
}
