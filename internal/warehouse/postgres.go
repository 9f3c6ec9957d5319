// Package warehouse loads anonymized rows into a Postgres analytical store.
// A dataset is a schema; each category table is range partitioned by day on
// its event timestamp and indexed on the pseudonymous subject.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
	"hed/internal/structures"
)

const (
	maxParams = 65535

	pgDuplicateSchema = "42P06"
	pgDuplicateTable  = "42P07"
)

var columnTypes = map[models.FieldType]string{
	models.TypeString:    "TEXT",
	models.TypeFloat:     "DOUBLE PRECISION",
	models.TypeInteger:   "BIGINT",
	models.TypeBoolean:   "BOOLEAN",
	models.TypeTimestamp: "TIMESTAMPTZ",
}

type PostgresWarehouse struct {
	db      *sql.DB
	dataset string
	logger  providers.Logger

	mu         sync.Mutex
	partitions map[string]struct{}
}

func NewPostgresWarehouse(conf *structures.Config, logger providers.Logger) (*PostgresWarehouse, func(), error) {
	db, err := sql.Open("pgx", conf.Warehouse.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open warehouse: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("connect warehouse: %w", err)
	}

	w := NewPostgresWarehouseFromDB(db, conf.Warehouse.Dataset, logger)
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Errorf(providers.TypeApp, "Closing warehouse: %s", err)
		}
	}
	return w, cleanup, nil
}

func NewPostgresWarehouseFromDB(db *sql.DB, dataset string, logger providers.Logger) *PostgresWarehouse {
	return &PostgresWarehouse{
		db:         db,
		dataset:    dataset,
		logger:     logger,
		partitions: make(map[string]struct{}),
	}
}

// ColumnName converts a camelCase field name to its snake_case column.
func ColumnName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (w *PostgresWarehouse) ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// TableRef is the quoted, schema-qualified name of a table in the dataset.
func (w *PostgresWarehouse) TableRef(table string) string {
	return w.ident(w.dataset, table)
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgDuplicateSchema || pgErr.Code == pgDuplicateTable) {
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyExists, pgErr.Message)
	}
	return err
}

func (w *PostgresWarehouse) DatasetExists(ctx context.Context) (bool, error) {
	var exists bool
	err := w.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		w.dataset,
	).Scan(&exists)
	return exists, err
}

func (w *PostgresWarehouse) CreateDataset(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, "CREATE SCHEMA "+w.ident(w.dataset))
	return mapConflict(err)
}

func (w *PostgresWarehouse) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := w.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		w.dataset, table,
	).Scan(&exists)
	return exists, err
}

// CreateTableSQL renders the partitioned table and its cluster index.
func (w *PostgresWarehouse) CreateTableSQL(schema models.TableSchema) []string {
	cols := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		typ := columnTypes[f.Type]
		if f.Mode == models.ModeRepeated {
			typ = "JSONB"
		}
		col := w.ident(ColumnName(f.Name)) + " " + typ
		if f.Mode == models.ModeRequired {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	table := w.TableRef(schema.Name)
	return []string{
		fmt.Sprintf("CREATE TABLE %s (\n\t%s\n) PARTITION BY RANGE (%s)",
			table, strings.Join(cols, ",\n\t"), w.ident(ColumnName(schema.PartitionField))),
		fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			w.ident(schema.Name+"_"+ColumnName(schema.ClusterField)+"_idx"), table, w.ident(ColumnName(schema.ClusterField))),
	}
}

func (w *PostgresWarehouse) CreateTable(ctx context.Context, schema models.TableSchema) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range w.CreateTableSQL(schema) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return mapConflict(err)
		}
	}
	return tx.Commit()
}

func partitionName(table string, day time.Time) string {
	return table + "_p" + day.Format("20060102")
}

func (w *PostgresWarehouse) ensurePartition(ctx context.Context, table string, day time.Time) error {
	name := partitionName(table, day)
	key := w.dataset + "." + name

	w.mu.Lock()
	_, ok := w.partitions[key]
	w.mu.Unlock()
	if ok {
		return nil
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')",
		w.TableRef(name), w.TableRef(table),
		day.Format(time.RFC3339), day.AddDate(0, 0, 1).Format(time.RFC3339))
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create partition %s: %w", name, err)
	}

	w.mu.Lock()
	w.partitions[key] = struct{}{}
	w.mu.Unlock()
	return nil
}

// InsertRows appends rows in one transaction after making sure every day
// partition they fall into exists. Fields outside the schema are not stored.
func (w *PostgresWarehouse) InsertRows(ctx context.Context, schema models.TableSchema, rows []models.AnonymizedRecord) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, 0, len(rows))
	days := make(map[time.Time]struct{})
	for i, row := range rows {
		vals, day, err := rowValues(schema, row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		values = append(values, vals)
		days[day] = struct{}{}
	}

	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	for _, d := range sorted {
		if err := w.ensurePartition(ctx, schema.Name, d); err != nil {
			return err
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	perStmt := maxParams / len(schema.Fields)
	for start := 0; start < len(values); start += perStmt {
		end := min(start+perStmt, len(values))
		query, args := w.insertSQL(schema, values[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", schema.Name, err)
		}
	}
	return tx.Commit()
}

func (w *PostgresWarehouse) insertSQL(schema models.TableSchema, rows [][]any) (string, []any) {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = w.ident(ColumnName(f.Name))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", w.TableRef(schema.Name), strings.Join(cols, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range row {
			if c > 0 {
				b.WriteString(", ")
			}
			args = append(args, row[c])
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

// rowValues orders and converts a record to the schema's column types. It
// returns the UTC day of the partition field.
func rowValues(schema models.TableSchema, row models.AnonymizedRecord) ([]any, time.Time, error) {
	vals := make([]any, len(schema.Fields))
	var day time.Time
	for i, f := range schema.Fields {
		v, err := convert(f, row[f.Name])
		if err != nil {
			return nil, day, fmt.Errorf("%w: field %s: %w", interfaces.ErrInvalidRow, f.Name, err)
		}
		if v == nil && f.Mode == models.ModeRequired {
			return nil, day, fmt.Errorf("%w: field %s is required", interfaces.ErrInvalidRow, f.Name)
		}
		if f.Name == schema.PartitionField {
			ts := v.(time.Time)
			day = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		}
		vals[i] = v
	}
	return vals, day, nil
}

func convert(f models.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.Mode == models.ModeRepeated {
		if _, ok := v.([]any); !ok {
			if _, ok := v.([]string); !ok {
				v = []any{v}
			}
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}

	switch f.Type {
	case models.TypeTimestamp:
		ts, err := models.ParseTimestamp(v)
		if err != nil {
			return nil, nil
		}
		return ts, nil
	case models.TypeInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		}
		n, ok := toFloat(v)
		if !ok {
			return nil, nil
		}
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return int64(n), nil
	case models.TypeFloat:
		n, ok := toFloat(v)
		if !ok {
			return nil, nil
		}
		return n, nil
	case models.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, nil
		}
		return b, nil
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case map[string]any, []any:
			b, err := json.Marshal(s)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}
		return fmt.Sprint(v), nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Query runs a read-only statement and returns rows as column maps.
func (w *PostgresWarehouse) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (w *PostgresWarehouse) Close() error {
	return w.db.Close()
}
