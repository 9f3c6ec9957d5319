package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hed/internal/models"
	"hed/internal/testutil"
)

func manifestFor(date string, finished time.Time) *models.ExportManifest {
	w, _ := models.ParseWindowDate(date)
	return &models.ExportManifest{
		RunID:      "run-" + date,
		Window:     w,
		FileName:   w.ArchiveFileName(),
		FinishedAt: finished,
		Archive:    models.Succeeded(0),
	}
}

func newTestLedger(t *testing.T, size int, comp *testutil.MockCompressor) *ManifestLedger {
	conf := testConfig(t.TempDir())
	conf.Export.LedgerSize = size
	return NewManifestLedger(conf, comp, &testutil.MockLogger{})
}

func TestManifestLedger_RecordAndGet(t *testing.T) {
	l := newTestLedger(t, 10, &testutil.MockCompressor{})
	now := time.Now()

	l.Record(manifestFor("2024-01-01", now))
	l.Record(manifestFor("2024-01-02", now.Add(time.Minute)))

	m, ok := l.Get("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, "run-2024-01-01", m.RunID)

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, "2024-01-02", latest.Window.Date())

	_, ok = l.Get("2023-12-31")
	assert.False(t, ok)
}

func TestManifestLedger_RerunReplacesDay(t *testing.T) {
	l := newTestLedger(t, 10, &testutil.MockCompressor{})
	now := time.Now()

	first := manifestFor("2024-01-01", now)
	second := manifestFor("2024-01-01", now.Add(time.Hour))
	second.RunID = "rerun"
	l.Record(first)
	l.Record(second)

	assert.Equal(t, 1, l.Len())
	m, _ := l.Get("2024-01-01")
	assert.Equal(t, "rerun", m.RunID)
}

func TestManifestLedger_EvictsOldestDays(t *testing.T) {
	l := newTestLedger(t, 2, &testutil.MockCompressor{})
	now := time.Now()

	l.Record(manifestFor("2024-01-03", now))
	l.Record(manifestFor("2024-01-01", now.Add(time.Minute)))
	l.Record(manifestFor("2024-01-02", now.Add(2*time.Minute)))

	assert.Equal(t, 2, l.Len())
	_, ok := l.Get("2024-01-01")
	assert.False(t, ok)

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, "2024-01-02", latest.Window.Date())

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "2024-01-03", all[0].Window.Date())
}

func TestManifestLedger_ZeroSizeIsUnbounded(t *testing.T) {
	l := newTestLedger(t, 0, &testutil.MockCompressor{})
	for d := 1; d <= 20; d++ {
		w := models.WindowForDate(time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC))
		l.Record(manifestFor(w.Date(), time.Now()))
	}
	assert.Equal(t, 20, l.Len())
}

func TestManifestLedger_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.dat")
	comp := &testutil.MockCompressor{}
	now := time.Date(2024, 1, 2, 2, 5, 0, 0, time.UTC)

	l := newTestLedger(t, 10, comp)
	m := manifestFor("2024-01-01", now)
	m.Categories = []models.CategoryResult{{Category: models.CategoryFood, Table: "food_entries", Count: 3, Warehouse: models.Succeeded(3)}}
	l.Record(m)
	require.NoError(t, l.SaveToFile(path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	restored := newTestLedger(t, 10, comp)
	require.NoError(t, restored.LoadFromFile(path))

	got, ok := restored.Get("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, 3, got.Counts()["food_entries"])
	assert.True(t, got.FinishedAt.Equal(now))
}

func TestManifestLedger_SaveAndLoadZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.dat")
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()

	conf := testConfig(t.TempDir())
	l := NewManifestLedger(conf, comp, &testutil.MockLogger{})
	l.Record(manifestFor("2024-01-01", time.Now()))
	require.NoError(t, l.SaveToFile(path))

	restored := NewManifestLedger(conf, comp, &testutil.MockLogger{})
	require.NoError(t, restored.LoadFromFile(path))
	assert.Equal(t, 1, restored.Len())
}

func TestManifestLedger_LoadMissingFile(t *testing.T) {
	l := newTestLedger(t, 10, &testutil.MockCompressor{})
	assert.NoError(t, l.LoadFromFile("/nonexistent/ledger.dat"))
	assert.Zero(t, l.Len())
}

func TestManifestLedger_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.dat")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	l := newTestLedger(t, 10, &testutil.MockCompressor{})
	assert.Error(t, l.LoadFromFile(path))
}

func TestManifestLedger_CompressError(t *testing.T) {
	comp := &testutil.MockCompressor{
		CompressFn: func(b []byte) ([]byte, error) {
			return nil, errors.New("compress failed")
		},
	}
	l := newTestLedger(t, 10, comp)

	err := l.SaveToFile(filepath.Join(t.TempDir(), "ledger.dat"))
	assert.ErrorContains(t, err, "compress failed")
}
