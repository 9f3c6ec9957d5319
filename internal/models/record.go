package models

import "strings"

const (
	FieldUserID          = "userId"
	FieldAnonymousUserID = "anonymousUserId"
	FieldTimestamp       = "timestamp"
	FieldCreatedAt       = "createdAt"
	FieldExportedAt      = "exportedAt"
)

// Record is one health document as stored by the record store. Documents are
// schemaless; category specific measures live next to userId and timestamp.
type Record map[string]any

// UserID returns the trimmed subject reference or an empty string when the
// field is absent or not a string.
func (r Record) UserID() string {
	v, ok := r[FieldUserID].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Clone makes a shallow copy so callers can drop keys without touching the
// store's document.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordBatch groups records read for one window by category.
type RecordBatch map[Category][]Record

// NewRecordBatch returns a batch with an empty slice for every category.
func NewRecordBatch() RecordBatch {
	b := make(RecordBatch, len(allCategories))
	for _, c := range allCategories {
		b[c] = []Record{}
	}
	return b
}

func (b RecordBatch) Total() int {
	n := 0
	for _, records := range b {
		n += len(records)
	}
	return n
}

// AnonymizedRecord is a de-identified record ready for the archive and the
// warehouse. All timestamps are canonical ISO-8601 strings.
type AnonymizedRecord map[string]any
