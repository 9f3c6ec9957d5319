package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/testutil"
)

func newMockWarehouse(t *testing.T) (*PostgresWarehouse, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresWarehouseFromDB(db, "health_analytics", &testutil.MockLogger{}), mock
}

func TestColumnName(t *testing.T) {
	cases := map[string]string{
		"anonymousUserId": "anonymous_user_id",
		"timestamp":       "timestamp",
		"caloriesBurned":  "calories_burned",
		"wakeTime":        "wake_time",
	}
	for in, want := range cases {
		assert.Equal(t, want, ColumnName(in), in)
	}
}

func TestDatasetExists(t *testing.T) {
	w, mock := newMockWarehouse(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM information_schema.schemata")).
		WithArgs("health_analytics").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := w.DatasetExists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDataset_ConflictMapsToAlreadyExists(t *testing.T) {
	w, mock := newMockWarehouse(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA "health_analytics"`)).
		WillReturnError(&pgconn.PgError{Code: "42P06", Message: `schema "health_analytics" already exists`})

	err := w.CreateDataset(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExists)
}

func TestTableExists(t *testing.T) {
	w, mock := newMockWarehouse(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs("health_analytics", "food_entries").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := w.TableExists(context.Background(), "food_entries")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateTableSQL(t *testing.T) {
	w := NewPostgresWarehouseFromDB(nil, "health_analytics", &testutil.MockLogger{})
	stmts := w.CreateTableSQL(models.SchemaFor(models.CategoryMood))

	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], `CREATE TABLE "health_analytics"."mood_entries"`)
	assert.Contains(t, stmts[0], `"anonymous_user_id" TEXT NOT NULL`)
	assert.Contains(t, stmts[0], `"factors" JSONB`)
	assert.Contains(t, stmts[0], `"rating" BIGINT`)
	assert.Contains(t, stmts[0], `"timestamp" TIMESTAMPTZ NOT NULL`)
	assert.Contains(t, stmts[0], `PARTITION BY RANGE ("timestamp")`)
	assert.Equal(t, `CREATE INDEX "mood_entries_anonymous_user_id_idx" ON "health_analytics"."mood_entries" ("anonymous_user_id")`, stmts[1])
}

func TestCreateTable(t *testing.T) {
	w, mock := newMockWarehouse(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "health_analytics"."food_entries"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX "food_entries_anonymous_user_id_idx"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, w.CreateTable(context.Background(), models.SchemaFor(models.CategoryFood)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTable_Conflict(t *testing.T) {
	w, mock := newMockWarehouse(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(&pgconn.PgError{Code: "42P07"})
	mock.ExpectRollback()

	err := w.CreateTable(context.Background(), models.SchemaFor(models.CategoryFood))
	assert.ErrorIs(t, err, interfaces.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func moodRow(ts string, factors any) models.AnonymizedRecord {
	return models.AnonymizedRecord{
		"anonymousUserId": "abc",
		"rating":          4.0,
		"factors":         factors,
		"timestamp":       ts,
		"exportedAt":      "2024-01-03T02:00:00.000Z",
		"unknownField":    "ignored",
	}
}

func TestInsertRows_CreatesPartitionsAndInserts(t *testing.T) {
	w, mock := newMockWarehouse(t)
	schema := models.SchemaFor(models.CategoryMood)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "health_analytics"."mood_entries_p20240101" PARTITION OF "health_analytics"."mood_entries" FOR VALUES FROM ('2024-01-01T00:00:00Z') TO ('2024-01-02T00:00:00Z')`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`"mood_entries_p20240102"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "health_analytics"."mood_entries" ("anonymous_user_id", "rating", "factors", "energy_level", "timestamp", "created_at", "exported_at") VALUES ($1, $2, $3, $4, $5, $6, $7), ($8,`)).
		WithArgs(
			"abc", int64(4), `["work","sleep"]`, nil, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), nil, time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC),
			"abc", int64(4), `["gym"]`, nil, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), nil, time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := w.InsertRows(context.Background(), schema, []models.AnonymizedRecord{
		moodRow("2024-01-01T10:00:00.000Z", []any{"work", "sleep"}),
		moodRow("2024-01-02T09:00:00.000Z", "gym"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRows_PartitionCreatedOnce(t *testing.T) {
	w, mock := newMockWarehouse(t)
	schema := models.SchemaFor(models.CategoryMood)
	rows := []models.AnonymizedRecord{moodRow("2024-01-01T10:00:00.000Z", nil)}

	mock.ExpectExec("PARTITION OF").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, w.InsertRows(context.Background(), schema, rows))
	require.NoError(t, w.InsertRows(context.Background(), schema, rows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRows_FailureRollsBack(t *testing.T) {
	w, mock := newMockWarehouse(t)
	schema := models.SchemaFor(models.CategoryMood)

	mock.ExpectExec("PARTITION OF").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := w.InsertRows(context.Background(), schema, []models.AnonymizedRecord{moodRow("2024-01-01T10:00:00.000Z", nil)})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRows_RequiredFieldMissing(t *testing.T) {
	w, _ := newMockWarehouse(t)
	row := moodRow("2024-01-01T10:00:00.000Z", nil)
	delete(row, "anonymousUserId")

	err := w.InsertRows(context.Background(), models.SchemaFor(models.CategoryMood), []models.AnonymizedRecord{row})
	assert.ErrorContains(t, err, "anonymousUserId is required")
	assert.ErrorIs(t, err, interfaces.ErrInvalidRow)
}

func exerciseRow(duration any) models.AnonymizedRecord {
	return models.AnonymizedRecord{
		"anonymousUserId": "abc",
		"exerciseType":    "run",
		"duration":        duration,
		"timestamp":       "2024-01-01T07:00:00.000Z",
	}
}

func TestRowValues_IntegerColumns(t *testing.T) {
	schema := models.SchemaFor(models.CategoryExercise)

	vals, _, err := rowValues(schema, exerciseRow(30.0))
	require.NoError(t, err)
	assert.Equal(t, int64(30), vals[2])

	vals, _, err = rowValues(schema, exerciseRow(int64(1)<<53+1))
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<53+1, vals[2])

	_, _, err = rowValues(schema, exerciseRow(12.9))
	assert.ErrorIs(t, err, interfaces.ErrInvalidRow)
	assert.ErrorContains(t, err, "duration")
}

func TestInsertRows_FractionalIntegerRejected(t *testing.T) {
	w, mock := newMockWarehouse(t)

	err := w.InsertRows(context.Background(), models.SchemaFor(models.CategoryExercise), []models.AnonymizedRecord{exerciseRow(12.9)})
	assert.ErrorIs(t, err, interfaces.ErrInvalidRow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRows_Empty(t *testing.T) {
	w, mock := newMockWarehouse(t)
	require.NoError(t, w.InsertRows(context.Background(), models.SchemaFor(models.CategoryFood), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSQL_Chunking(t *testing.T) {
	w := NewPostgresWarehouseFromDB(nil, "d", &testutil.MockLogger{})
	schema := models.SchemaFor(models.CategoryWater)
	rows := make([][]any, 3)
	for i := range rows {
		rows[i] = make([]any, len(schema.Fields))
	}

	query, args := w.insertSQL(schema, rows)
	assert.Len(t, args, 3*len(schema.Fields))
	assert.Contains(t, query, "$18")
	assert.NotContains(t, query, "$19")
}

func TestQuery(t *testing.T) {
	w, mock := newMockWarehouse(t)
	mock.ExpectQuery("SELECT date").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"date", "total"}).
			AddRow([]byte("2024-01-02"), 12.5).
			AddRow([]byte("2024-01-01"), 3.0))

	rows, err := w.Query(context.Background(), "SELECT date, total FROM t WHERE d > $1", int64(7))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-02", rows[0]["date"])
	assert.Equal(t, 12.5, rows[0]["total"])
}
