package export

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"hed/internal/models"
	"hed/internal/structures"
)

// DenyList holds the direct identifiers removed from every exported record.
var DenyList = []string{models.FieldUserID, "email", "fullName", "profilePicture"}

type DropReason string

const (
	DropMissingUserID    DropReason = "missing_user_id"
	DropMissingTimestamp DropReason = "missing_timestamp"
	DropFutureTimestamp  DropReason = "future_timestamp"
)

// DropStats counts records excluded from a batch, by reason.
type DropStats map[DropReason]int

func (d DropStats) Total() int {
	n := 0
	for _, c := range d {
		n += c
	}
	return n
}

// Anonymizer turns raw records into de-identified ones. It holds no state
// between calls.
type Anonymizer struct {
	denied    map[string]struct{}
	clockSkew time.Duration
	now       func() time.Time
}

func NewAnonymizer(conf *structures.Config) *Anonymizer {
	denied := make(map[string]struct{}, len(DenyList))
	for _, f := range DenyList {
		denied[f] = struct{}{}
	}
	return &Anonymizer{
		denied:    denied,
		clockSkew: conf.Export.ClockSkew,
		now:       time.Now,
	}
}

// PseudonymFor is the hex SHA-256 of the user id. It is deterministic and
// unkeyed, so the same subject joins across categories and days.
func PseudonymFor(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// Anonymize converts one category's records. Records without a subject or a
// usable event timestamp are skipped and counted instead of failing the batch.
func (a *Anonymizer) Anonymize(category models.Category, records []models.Record, exportedAt time.Time) ([]models.AnonymizedRecord, DropStats) {
	schema := models.SchemaFor(category)
	tsFields := make(map[string]struct{})
	for _, name := range schema.TimestampFields() {
		tsFields[name] = struct{}{}
	}

	latest := a.now().Add(a.clockSkew)
	stamp := models.FormatCanonical(exportedAt)
	drops := DropStats{}
	out := make([]models.AnonymizedRecord, 0, len(records))

	for _, record := range records {
		userID := record.UserID()
		if userID == "" {
			drops[DropMissingUserID]++
			continue
		}
		eventTime, err := models.ParseTimestamp(record[models.FieldTimestamp])
		if err != nil {
			drops[DropMissingTimestamp]++
			continue
		}
		if eventTime.After(latest) {
			drops[DropFutureTimestamp]++
			continue
		}

		anon := make(models.AnonymizedRecord, len(record)+1)
		for key, value := range record {
			if _, deny := a.denied[key]; deny {
				continue
			}
			if _, isTS := tsFields[key]; isTS {
				anon[key] = canonicalOrRaw(value)
				continue
			}
			anon[key] = a.scrub(value)
		}
		anon[models.FieldAnonymousUserID] = PseudonymFor(userID)
		anon[models.FieldTimestamp] = models.FormatCanonical(eventTime)
		anon[models.FieldExportedAt] = stamp

		out = append(out, anon)
	}
	return out, drops
}

// canonicalOrRaw formats parseable timestamps canonically and leaves any
// other value as it was stored.
func canonicalOrRaw(v any) any {
	if v == nil {
		return nil
	}
	ts, err := models.ParseTimestamp(v)
	if err != nil {
		return v
	}
	return models.FormatCanonical(ts)
}

// scrub canonicalises native timestamps and strips denied keys inside
// nested objects and arrays.
func (a *Anonymizer) scrub(v any) any {
	if models.IsStoreTimestamp(v) {
		return canonicalOrRaw(v)
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, nested := range t {
			if _, deny := a.denied[k]; deny {
				continue
			}
			out[k] = a.scrub(nested)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, nested := range t {
			out[i] = a.scrub(nested)
		}
		return out
	}
	return v
}
