package export

import (
	"os"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
	"hed/internal/structures"
)

type ledgerFile struct {
	Manifests []*models.ExportManifest `json:"manifests"`
}

// ManifestLedger keeps the most recent manifest per export day. A re-run of a
// day replaces the previous entry. When more than size days are held, the
// oldest days are evicted.
type ManifestLedger struct {
	mu         sync.RWMutex
	size       int
	entries    map[string]*models.ExportManifest
	latest     *models.ExportManifest
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewManifestLedger(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) *ManifestLedger {
	return &ManifestLedger{
		size:       conf.Export.LedgerSize,
		entries:    make(map[string]*models.ExportManifest),
		compressor: compressor,
		logger:     logger,
	}
}

func (l *ManifestLedger) Record(m *models.ExportManifest) {
	if m == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.put(m)
	l.evict()
}

func (l *ManifestLedger) put(m *models.ExportManifest) {
	l.entries[m.Window.Date()] = m
	if l.latest == nil || !m.FinishedAt.Before(l.latest.FinishedAt) {
		l.latest = m
	}
}

func (l *ManifestLedger) evict() {
	if l.size <= 0 || len(l.entries) <= l.size {
		return
	}
	dates := l.datesLocked()
	for _, d := range dates[:len(dates)-l.size] {
		if l.latest == l.entries[d] {
			l.latest = nil
		}
		delete(l.entries, d)
	}
	if l.latest == nil {
		for _, m := range l.entries {
			if l.latest == nil || m.FinishedAt.After(l.latest.FinishedAt) {
				l.latest = m
			}
		}
	}
}

// datesLocked returns held dates in ascending order.
func (l *ManifestLedger) datesLocked() []string {
	dates := make([]string, 0, len(l.entries))
	for d := range l.entries {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Get returns the manifest of the last run for a YYYY-MM-DD date.
func (l *ManifestLedger) Get(date string) (*models.ExportManifest, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.entries[date]
	return m, ok
}

// Latest returns the manifest of the most recently finished run.
func (l *ManifestLedger) Latest() (*models.ExportManifest, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest, l.latest != nil
}

// All returns every held manifest, newest day first.
func (l *ManifestLedger) All() []*models.ExportManifest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	dates := l.datesLocked()
	out := make([]*models.ExportManifest, 0, len(dates))
	for i := len(dates) - 1; i >= 0; i-- {
		out = append(out, l.entries[dates[i]])
	}
	return out
}

func (l *ManifestLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *ManifestLedger) SaveToFile(fileName string) error {
	jsonData, err := json.Marshal(ledgerFile{Manifests: l.All()})
	if err != nil {
		return err
	}
	data, err := l.compressor.Compress(jsonData)
	if err != nil {
		return err
	}
	return writeFileAtomic(fileName, data)
}

// LoadFromFile replaces the ledger content with the saved one. A missing
// file leaves the ledger empty.
func (l *ManifestLedger) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	decompressed, err := l.compressor.Decompress(data)
	if err != nil {
		return err
	}

	var file ledgerFile
	if err := json.Unmarshal(decompressed, &file); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*models.ExportManifest, len(file.Manifests))
	l.latest = nil
	for _, m := range file.Manifests {
		if m != nil {
			l.put(m)
		}
	}
	l.evict()
	l.logger.Infof(providers.TypeApp, "Restored %d export manifests from %s", len(l.entries), fileName)
	return nil
}

func (l *ManifestLedger) Close() {
	l.compressor.Close()
}
