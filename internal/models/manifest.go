package models

import (
	"fmt"
	"strings"
	"time"
)

type ResultStatus string

const (
	StatusSucceeded ResultStatus = "succeeded"
	StatusFailed    ResultStatus = "failed"
	StatusPartial   ResultStatus = "partial"
)

// SinkResult is the tagged outcome of one write: Succeeded(count) or Failed(reason).
type SinkResult struct {
	Status ResultStatus `json:"status"`
	Count  int          `json:"count"`
	Error  string       `json:"error,omitempty"`
}

func Succeeded(count int) SinkResult {
	return SinkResult{Status: StatusSucceeded, Count: count}
}

func Failed(err error) SinkResult {
	return SinkResult{Status: StatusFailed, Error: err.Error()}
}

func (r SinkResult) Ok() bool {
	return r.Status == StatusSucceeded
}

type CategoryResult struct {
	Category  Category   `json:"category"`
	Table     string     `json:"table"`
	Count     int        `json:"count"`
	Dropped   int        `json:"dropped"`
	Warehouse SinkResult `json:"warehouse"`
}

// ExportManifest summarises one export run. It is returned to the trigger,
// logged, and kept in the bounded ledger; nothing else persists it.
type ExportManifest struct {
	RunID       string           `json:"runId"`
	Window      ExportWindow     `json:"window"`
	FileName    string           `json:"fileName"`
	ArchivePath string           `json:"archivePath"`
	ExportedAt  time.Time        `json:"exportedAt"`
	FinishedAt  time.Time        `json:"finishedAt"`
	Archive     SinkResult       `json:"archive"`
	Categories  []CategoryResult `json:"categories"`
}

// Status aggregates archive and per-category results.
func (m *ExportManifest) Status() ResultStatus {
	total, failed := 1, 0
	if !m.Archive.Ok() {
		failed++
	}
	for _, c := range m.Categories {
		total++
		if !c.Warehouse.Ok() {
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusSucceeded
	case failed == total:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Counts maps table name to anonymized record count.
func (m *ExportManifest) Counts() map[string]int {
	out := make(map[string]int, len(m.Categories))
	for _, c := range m.Categories {
		out[c.Table] = c.Count
	}
	return out
}

func (m *ExportManifest) Category(c Category) (CategoryResult, bool) {
	for _, r := range m.Categories {
		if r.Category == c {
			return r, true
		}
	}
	return CategoryResult{}, false
}

func (m *ExportManifest) FailedCategories() []Category {
	var out []Category
	for _, c := range m.Categories {
		if !c.Warehouse.Ok() {
			out = append(out, c.Category)
		}
	}
	return out
}

// FailureSummary is a one-line description of every failed sink.
func (m *ExportManifest) FailureSummary() string {
	var parts []string
	if !m.Archive.Ok() {
		parts = append(parts, "archive: "+m.Archive.Error)
	}
	for _, c := range m.Categories {
		if !c.Warehouse.Ok() {
			parts = append(parts, fmt.Sprintf("%s: %s", c.Table, c.Warehouse.Error))
		}
	}
	return strings.Join(parts, "; ")
}
