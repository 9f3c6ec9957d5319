package export

import (
	"fmt"
	"time"

	"hed/internal/models"
	"hed/internal/structures"
	"hed/internal/testutil"
)

func testConfig(dir string) *structures.Config {
	return &structures.Config{
		Persistence: structures.Persistence{
			FilePath:     dir + "/ledger.dat",
			SaveInterval: time.Second,
		},
		Archive: structures.ArchiveConfig{
			Driver:         "local",
			Dir:            dir + "/archive",
			Prefix:         "daily-exports",
			Classification: "anonymized-health-data",
			Purpose:        "analytics",
		},
		Export: structures.ExportConfig{
			DailyAt:        "02:00",
			Retries:        0,
			RetryBaseDelay: time.Millisecond,
			ClockSkew:      5 * time.Minute,
			LedgerSize:     10,
		},
	}
}

func record(userID string, ts time.Time, fields map[string]any) models.Record {
	r := models.Record{"id": fmt.Sprintf("%s-%d", userID, ts.UnixNano())}
	if userID != "" {
		r[models.FieldUserID] = userID
	}
	if !ts.IsZero() {
		r[models.FieldTimestamp] = ts
	}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

// jan1Batch is the 2024-01-01 scenario: food 3, exercise 2, water 0,
// sleep 1, mood 0.
func jan1Batch() models.RecordBatch {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := models.NewRecordBatch()
	b[models.CategoryFood] = []models.Record{
		record("u1", day.Add(8*time.Hour), map[string]any{"foodName": "oatmeal", "calories": 150.0, "email": "u1@example.com"}),
		record("u1", day.Add(13*time.Hour), map[string]any{"foodName": "salad", "calories": 320.0}),
		record("u2", day.Add(19*time.Hour), map[string]any{"foodName": "pasta", "calories": 610.0}),
	}
	b[models.CategoryExercise] = []models.Record{
		record("u1", day.Add(7*time.Hour), map[string]any{"exerciseType": "run", "duration": 30}),
		record("u3", day.Add(18*time.Hour), map[string]any{"exerciseType": "swim", "duration": 45}),
	}
	b[models.CategorySleep] = []models.Record{
		record("u2", day.Add(23*time.Hour), map[string]any{"duration": 7.5, "quality": 4}),
	}
	return b
}

type testHarness struct {
	conf      *structures.Config
	store     *testutil.StaticRecordStore
	blobs     *testutil.FakeBlobStore
	warehouse *testutil.FakeWarehouse
	metrics   *testutil.MockMetrics
	logger    *testutil.MockLogger
	ledger    *ManifestLedger
	pipeline  *Pipeline
}

func newHarness(dir string, batch models.RecordBatch) *testHarness {
	h := &testHarness{
		conf:      testConfig(dir),
		store:     &testutil.StaticRecordStore{Batch: batch},
		blobs:     testutil.NewFakeBlobStore(),
		warehouse: testutil.NewFakeWarehouse(),
		metrics:   &testutil.MockMetrics{},
		logger:    &testutil.MockLogger{},
	}
	retrier := NewRetrier(h.conf)
	anonymizer := NewAnonymizer(h.conf)
	anonymizer.now = func() time.Time { return time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC) }
	h.ledger = NewManifestLedger(h.conf, &testutil.MockCompressor{}, h.logger)
	h.pipeline = NewPipeline(
		h.store,
		anonymizer,
		NewArchiveWriter(h.conf, h.blobs, retrier, h.logger),
		NewWarehouseLoader(h.warehouse, retrier, h.logger),
		h.ledger,
		retrier,
		h.metrics,
		h.logger,
	)
	return h
}
