package models

import (
	"fmt"
	"math"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// CanonicalTimeLayout is ISO-8601 in UTC with millisecond precision.
const CanonicalTimeLayout = "2006-01-02T15:04:05.000Z"

var acceptedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	dateLayout,
}

func FormatCanonical(t time.Time) string {
	return t.UTC().Format(CanonicalTimeLayout)
}

// ParseTimestamp understands the representations a document store hands
// back: time.Time, RFC3339-like strings, epoch milliseconds and
// {_seconds,_nanoseconds} / {seconds,nanoseconds} objects.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("nil timestamp")
		}
		return t.UTC(), nil
	case string:
		for _, layout := range acceptedTimeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, fmt.Errorf("invalid timestamp %v", t)
		}
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", t, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	case map[string]any:
		if ts, ok := storeTimestamp(t); ok {
			return ts, nil
		}
		return time.Time{}, fmt.Errorf("object is not a timestamp")
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// storeTimestamp decodes the seconds/nanoseconds object used by document
// stores when timestamps are serialised to JSON.
func storeTimestamp(m map[string]any) (time.Time, bool) {
	for _, keys := range [][2]string{{"_seconds", "_nanoseconds"}, {"seconds", "nanoseconds"}} {
		sec, ok := number(m[keys[0]])
		if !ok {
			continue
		}
		nsec, _ := number(m[keys[1]])
		return time.Unix(int64(sec), int64(nsec)).UTC(), true
	}
	return time.Time{}, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// IsStoreTimestamp reports whether v is a native timestamp value that must be
// canonicalised even when the field is not declared as a timestamp.
func IsStoreTimestamp(v any) bool {
	switch t := v.(type) {
	case time.Time, *time.Time:
		return true
	case map[string]any:
		_, ok := storeTimestamp(t)
		return ok
	}
	return false
}
