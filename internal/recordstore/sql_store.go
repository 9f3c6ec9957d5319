// Package recordstore reads health records from the primary document store,
// a SQL table holding one JSON document per record.
package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"hed/internal/models"
	"hed/internal/providers"
	"hed/internal/recordstore/migrations"
	"hed/internal/structures"
)

const selectWindowQuery = `SELECT id, category, user_id, document
FROM health_records
WHERE recorded_at >= $1 AND recorded_at < $2
ORDER BY recorded_at, id`

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

type SQLStore struct {
	db     *sql.DB
	driver string
	logger providers.Logger
}

// Open connects to the configured store and verifies the connection.
func Open(conf *structures.Config) (*sql.DB, error) {
	db, err := sql.Open(conf.RecordStore.Driver, conf.RecordStore.DSN)
	if err != nil {
		return nil, err
	}

	if conf.RecordStore.Driver == "sqlite3" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLStore opens the store, applies migrations when enabled and returns a
// cleanup function closing the connection pool.
func NewSQLStore(conf *structures.Config, logger providers.Logger) (*SQLStore, func(), error) {
	db, err := Open(conf)
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	s := NewSQLStoreFromDB(db, conf.RecordStore.Driver, logger)

	if conf.RecordStore.Migrate {
		if err := s.RunMigrations(context.Background()); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate record store: %w", err)
		}
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Errorf(providers.TypeApp, "Closing record store: %s", err)
		}
	}
	return s, cleanup, nil
}

func NewSQLStoreFromDB(db *sql.DB, driver string, logger providers.Logger) *SQLStore {
	return &SQLStore{db: db, driver: driver, logger: logger}
}

// RunMigrations applies the embedded schema with goose.
func (s *SQLStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(s.driver); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

// GetRecordsForExport returns every record whose event time falls in
// [startInclusive, endExclusive). Documents that cannot be decoded or carry
// an unknown category are skipped and logged.
func (s *SQLStore) GetRecordsForExport(ctx context.Context, startInclusive, endExclusive time.Time) (models.RecordBatch, error) {
	rows, err := s.db.QueryContext(ctx, selectWindowQuery, startInclusive.UTC(), endExclusive.UTC())
	if err != nil {
		return nil, fmt.Errorf("query health records: %w", err)
	}
	defer rows.Close()

	batch := models.NewRecordBatch()
	skipped := 0
	for rows.Next() {
		var (
			id, category, document string
			userID                 sql.NullString
		)
		if err := rows.Scan(&id, &category, &userID, &document); err != nil {
			return nil, fmt.Errorf("scan health record: %w", err)
		}

		c, err := models.ParseCategory(category)
		if err != nil {
			skipped++
			s.logger.Warnf(providers.TypeExport, "Record %s has unknown category %q", id, category)
			continue
		}

		var record models.Record
		if err := json.Unmarshal([]byte(document), &record); err != nil || record == nil {
			skipped++
			s.logger.Warnf(providers.TypeExport, "Record %s has an undecodable document: %v", id, err)
			continue
		}
		record["id"] = id
		if _, ok := record[models.FieldUserID]; !ok && userID.Valid {
			record[models.FieldUserID] = userID.String
		}
		batch[c] = append(batch[c], record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health records: %w", err)
	}

	if skipped > 0 {
		s.logger.Warnf(providers.TypeExport, "Skipped %d undecodable health records", skipped)
	}
	return batch, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
