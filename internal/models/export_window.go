package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout           = "2006-01-02"
	archiveFileNameFmt   = "daily-export-%s.json"
	windowEndPrecision   = time.Millisecond
	ArchiveFileExtension = ".json"
)

var ErrInvalidWindow = errors.New("invalid export window")

// ExportWindow selects records for one export run. End is the last
// millisecond covered; EndExclusive is the bound used in store queries.
type ExportWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewExportWindow builds an ad-hoc window. Both bounds are normalised to UTC.
func NewExportWindow(start, end time.Time) (ExportWindow, error) {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return ExportWindow{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow, start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))
	}
	return ExportWindow{Start: start, End: end}, nil
}

// WindowForDate covers the whole UTC calendar day of date.
func WindowForDate(date time.Time) ExportWindow {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return ExportWindow{
		Start: start,
		End:   start.AddDate(0, 0, 1).Add(-windowEndPrecision),
	}
}

// DailyWindow is the "yesterday" window relative to ref, shared by the
// scheduled job and the manual trigger.
func DailyWindow(ref time.Time) ExportWindow {
	return WindowForDate(ref.UTC().AddDate(0, 0, -1))
}

// ParseWindowDate parses a YYYY-MM-DD day into its window.
func ParseWindowDate(s string) (ExportWindow, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return ExportWindow{}, fmt.Errorf("%w: %s", ErrInvalidWindow, err)
	}
	return WindowForDate(d), nil
}

func (w ExportWindow) EndExclusive() time.Time {
	return w.End.Add(windowEndPrecision)
}

// Overlaps reports whether the two windows share any instant.
func (w ExportWindow) Overlaps(other ExportWindow) bool {
	return w.Start.Before(other.EndExclusive()) && other.Start.Before(w.EndExclusive())
}

// Date is the start day, used to key manifests and name the archive file.
func (w ExportWindow) Date() string {
	return w.Start.Format(dateLayout)
}

func (w ExportWindow) ArchiveFileName() string {
	return fmt.Sprintf(archiveFileNameFmt, w.Date())
}

func (w ExportWindow) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(CanonicalTimeLayout), w.End.Format(CanonicalTimeLayout))
}
