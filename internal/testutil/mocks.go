package testutil

import (
	"context"
	"sync"
	"time"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns the number of entries logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.Logs {
		if l.Level == level {
			n++
		}
	}
	return n
}

// MockMetrics implements providers.MetricsProviderInterface and keeps totals.
type MockMetrics struct {
	mu                  sync.Mutex
	Requests            int
	CacheHits           int
	CacheMisses         int
	PersistenceObserved int
	ExportStatuses      []string
	Exported            map[string]int
	Dropped             map[string]int
	SinkFailures        map[string]int
	LastSuccess         time.Time
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests++
}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistenceObserved++
}
func (m *MockMetrics) ObserveExportDuration(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExportStatuses = append(m.ExportStatuses, status)
}
func (m *MockMetrics) AddRecordsExported(category string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Exported == nil {
		m.Exported = make(map[string]int)
	}
	m.Exported[category] += count
}
func (m *MockMetrics) AddRecordsDropped(category string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Dropped == nil {
		m.Dropped = make(map[string]int)
	}
	m.Dropped[category] += count
}
func (m *MockMetrics) IncSinkFailures(category, sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SinkFailures == nil {
		m.SinkFailures = make(map[string]int)
	}
	m.SinkFailures[category+"/"+sink]++
}
func (m *MockMetrics) SetLastSuccessfulExport(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSuccess = at
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {
	m.Closed = true
}

// StaticRecordStore implements interfaces.RecordStore with a fixed batch.
// Records outside the requested range are filtered out by event time.
type StaticRecordStore struct {
	mu    sync.Mutex
	Batch models.RecordBatch
	Err   error
	Calls [][2]time.Time
	// Block, when set, is waited on before returning.
	Block chan struct{}
}

func (s *StaticRecordStore) GetRecordsForExport(ctx context.Context, startInclusive, endExclusive time.Time) (models.RecordBatch, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, [2]time.Time{startInclusive, endExclusive})
	block := s.Block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}

	out := models.NewRecordBatch()
	for category, records := range s.Batch {
		for _, r := range records {
			ts, err := models.ParseTimestamp(r[models.FieldTimestamp])
			if err == nil && (ts.Before(startInclusive) || !ts.Before(endExclusive)) {
				continue
			}
			out[category] = append(out[category], r.Clone())
		}
	}
	return out, nil
}

// FakeBlobStore implements interfaces.BlobStore in memory.
type FakeBlobStore struct {
	mu         sync.Mutex
	Objects    map[string]FakeObject
	PutCalls   int
	ReadyCalls int
	PutErr     error
	ReadyErr   error
}

type FakeObject struct {
	Body        []byte
	ContentType string
	Metadata    map[string]string
}

func NewFakeBlobStore() *FakeBlobStore {
	return &FakeBlobStore{Objects: make(map[string]FakeObject)}
}

func (f *FakeBlobStore) EnsureReady(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadyCalls++
	return f.ReadyErr
}

func (f *FakeBlobStore) Put(_ context.Context, path string, body []byte, contentType string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if f.PutErr != nil {
		return f.PutErr
	}
	f.Objects[path] = FakeObject{Body: append([]byte(nil), body...), ContentType: contentType, Metadata: metadata}
	return nil
}

// FakeWarehouse implements interfaces.Warehouse in memory.
type FakeWarehouse struct {
	mu                 sync.Mutex
	Dataset            bool
	Tables             map[string]models.TableSchema
	Rows               map[string][]models.AnonymizedRecord
	InsertCalls        map[string]int
	CreateDatasetCalls int
	CreateTableCalls   []string
	// InsertErr fails inserts into the named tables.
	InsertErr map[string]error
	// RaceOnCreate makes creates report a conflict as if another writer won.
	RaceOnCreate bool
	DatasetErr   error
}

func NewFakeWarehouse() *FakeWarehouse {
	return &FakeWarehouse{
		Tables:      make(map[string]models.TableSchema),
		Rows:        make(map[string][]models.AnonymizedRecord),
		InsertCalls: make(map[string]int),
		InsertErr:   make(map[string]error),
	}
}

func (f *FakeWarehouse) DatasetExists(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DatasetErr != nil {
		return false, f.DatasetErr
	}
	return f.Dataset, nil
}

func (f *FakeWarehouse) CreateDataset(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateDatasetCalls++
	if f.RaceOnCreate {
		f.Dataset = true
		return interfaces.ErrAlreadyExists
	}
	f.Dataset = true
	return nil
}

func (f *FakeWarehouse) TableExists(_ context.Context, table string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Tables[table]
	return ok, nil
}

func (f *FakeWarehouse) CreateTable(_ context.Context, schema models.TableSchema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateTableCalls = append(f.CreateTableCalls, schema.Name)
	f.Tables[schema.Name] = schema
	if f.RaceOnCreate {
		return interfaces.ErrAlreadyExists
	}
	return nil
}

func (f *FakeWarehouse) InsertRows(_ context.Context, schema models.TableSchema, rows []models.AnonymizedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InsertCalls[schema.Name]++
	if err := f.InsertErr[schema.Name]; err != nil {
		return err
	}
	f.Rows[schema.Name] = append(f.Rows[schema.Name], rows...)
	return nil
}

func (f *FakeWarehouse) RowCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Rows[table])
}

func (f *FakeWarehouse) InsertCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.InsertCalls[table]
}
