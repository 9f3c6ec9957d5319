package recordstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"hed/internal/models"
)

const insertRecordQuery = `INSERT INTO health_records (id, category, user_id, recorded_at, created_at, document)
VALUES ($1, $2, $3, $4, $5, $6)`

// insert writes a record the way the upstream service stores it: the
// document keeps canonical timestamps, the event time is also a column.
func (s *SQLStore) insert(ctx context.Context, category models.Category, record models.Record) (string, error) {
	if !category.Valid() {
		return "", fmt.Errorf("unknown category %q", category)
	}
	recordedAt, err := models.ParseTimestamp(record[models.FieldTimestamp])
	if err != nil {
		return "", fmt.Errorf("record timestamp: %w", err)
	}
	createdAt := time.Now().UTC()
	if v, ok := record[models.FieldCreatedAt]; ok {
		if ts, err := models.ParseTimestamp(v); err == nil {
			createdAt = ts
		}
	}

	doc := record.Clone()
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	delete(doc, "id")
	doc[models.FieldTimestamp] = models.FormatCanonical(recordedAt)
	doc[models.FieldCreatedAt] = models.FormatCanonical(createdAt)

	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	var userID sql.NullString
	if u := record.UserID(); u != "" {
		userID = sql.NullString{String: u, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, insertRecordQuery, id, string(category), userID, recordedAt, createdAt, string(body))
	return id, err
}
