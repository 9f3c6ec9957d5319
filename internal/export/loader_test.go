package export

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/testutil"
)

func newTestLoader(t *testing.T, wh *testutil.FakeWarehouse) *WarehouseLoader {
	conf := testConfig(t.TempDir())
	return NewWarehouseLoader(wh, NewRetrier(conf), &testutil.MockLogger{})
}

func TestWarehouseLoader_EnsureInitialized_CreatesEverythingOnce(t *testing.T) {
	wh := testutil.NewFakeWarehouse()
	l := newTestLoader(t, wh)

	report, err := l.EnsureInitialized(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DatasetCreated)
	assert.Equal(t, []string{"food_entries", "exercise_entries", "water_entries", "sleep_entries", "mood_entries"}, report.TablesCreated)

	for _, schema := range models.Schemas() {
		created := wh.Tables[schema.Name]
		assert.Equal(t, models.FieldTimestamp, created.PartitionField)
		assert.Equal(t, models.FieldAnonymousUserID, created.ClusterField)
	}

	report, err = l.EnsureInitialized(context.Background())
	require.NoError(t, err)
	assert.False(t, report.DatasetCreated)
	assert.Empty(t, report.TablesCreated)
	assert.Len(t, wh.CreateTableCalls, 5)
}

func TestWarehouseLoader_EnsureInitialized_ExistingObjects(t *testing.T) {
	wh := testutil.NewFakeWarehouse()
	wh.Dataset = true
	wh.Tables["food_entries"] = models.SchemaFor(models.CategoryFood)
	wh.Tables["mood_entries"] = models.SchemaFor(models.CategoryMood)

	report, err := newTestLoader(t, wh).EnsureInitialized(context.Background())
	require.NoError(t, err)
	assert.False(t, report.DatasetCreated)
	assert.Equal(t, []string{"exercise_entries", "water_entries", "sleep_entries"}, report.TablesCreated)
	assert.Zero(t, wh.CreateDatasetCalls)
}

func TestWarehouseLoader_EnsureInitialized_ConflictIsSuccess(t *testing.T) {
	wh := testutil.NewFakeWarehouse()
	wh.RaceOnCreate = true

	report, err := newTestLoader(t, wh).EnsureInitialized(context.Background())
	require.NoError(t, err)
	assert.False(t, report.DatasetCreated)
	assert.Empty(t, report.TablesCreated)
	assert.Len(t, wh.CreateTableCalls, 5)
}

func TestWarehouseLoader_EnsureInitialized_ErrorAllowsRetry(t *testing.T) {
	wh := testutil.NewFakeWarehouse()
	wh.DatasetErr = errors.New("connection refused")
	l := newTestLoader(t, wh)

	_, err := l.EnsureInitialized(context.Background())
	require.Error(t, err)

	wh.DatasetErr = nil
	report, err := l.EnsureInitialized(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DatasetCreated)
}

func TestWarehouseLoader_Load_SkipsEmptyCategories(t *testing.T) {
	wh := testutil.NewFakeWarehouse()
	l := newTestLoader(t, wh)

	results := l.Load(context.Background(), map[models.Category][]models.AnonymizedRecord{
		models.CategoryFood:  {{"anonymousUserId": "a"}, {"anonymousUserId": "b"}},
		models.CategorySleep: {{"anonymousUserId": "c"}},
	})

	require.Len(t, results, 5)
	assert.Equal(t, models.CategoryFood, results[0].Category)
	assert.Equal(t, models.Succeeded(2), results[0].Warehouse)
	assert.Equal(t, models.Succeeded(0), results[2].Warehouse)
	assert.Equal(t, models.Succeeded(1), results[3].Warehouse)

	assert.Equal(t, 1, wh.InsertCount("food_entries"))
	assert.Equal(t, 1, wh.InsertCount("sleep_entries"))
	assert.Zero(t, wh.InsertCount("water_entries"))
	assert.Zero(t, wh.InsertCount("mood_entries"))
	assert.Zero(t, wh.InsertCount("exercise_entries"))
}

func TestWarehouseLoader_Load_FailureIsIsolated(t *testing.T) {
	wh := testutil.NewFakeWarehouse()
	wh.InsertErr["exercise_entries"] = errors.New("quota exceeded")
	l := newTestLoader(t, wh)

	results := l.Load(context.Background(), map[models.Category][]models.AnonymizedRecord{
		models.CategoryFood:     {{"anonymousUserId": "a"}},
		models.CategoryExercise: {{"anonymousUserId": "b"}},
		models.CategoryMood:     {{"anonymousUserId": "c"}},
	})

	assert.True(t, results[0].Warehouse.Ok())
	assert.Equal(t, models.StatusFailed, results[1].Warehouse.Status)
	assert.Contains(t, results[1].Warehouse.Error, "quota exceeded")
	assert.True(t, results[4].Warehouse.Ok())
	assert.Equal(t, 1, wh.RowCount("food_entries"))
	assert.Equal(t, 1, wh.RowCount("mood_entries"))
}

func TestWarehouseLoader_Load_InvalidRowsNotRetried(t *testing.T) {
	wh := testutil.NewFakeWarehouse()
	wh.InsertErr["exercise_entries"] = fmt.Errorf("row 0: %w: field duration: 12.9 is not an integer", interfaces.ErrInvalidRow)
	conf := testConfig(t.TempDir())
	conf.Export.Retries = 3
	l := NewWarehouseLoader(wh, NewRetrier(conf), &testutil.MockLogger{})

	results := l.Load(context.Background(), map[models.Category][]models.AnonymizedRecord{
		models.CategoryExercise: {{"anonymousUserId": "b", "duration": 12.9}},
	})

	assert.Equal(t, models.StatusFailed, results[1].Warehouse.Status)
	assert.Equal(t, 1, wh.InsertCount("exercise_entries"))
}
