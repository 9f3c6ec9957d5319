package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"hed/internal/export/interfaces"
	"hed/internal/models"
	"hed/internal/providers"
	"hed/internal/structures"
)

const (
	archiveContentType = "application/json"

	MetaExportedAt         = "exported-at"
	MetaDataClassification = "data-classification"
	MetaPurpose            = "purpose"
)

// ArchivePayload maps table name to that category's anonymized records.
type ArchivePayload map[string][]models.AnonymizedRecord

// NewArchivePayload builds a payload containing every category, with empty
// arrays for categories that had no records.
func NewArchivePayload(batch map[models.Category][]models.AnonymizedRecord) ArchivePayload {
	p := make(ArchivePayload, len(models.AllCategories()))
	for _, c := range models.AllCategories() {
		records := batch[c]
		if records == nil {
			records = []models.AnonymizedRecord{}
		}
		p[c.Table()] = records
	}
	return p
}

// ArchiveWriter writes one immutable JSON object per export day.
type ArchiveWriter struct {
	store          interfaces.BlobStore
	retrier        *Retrier
	logger         providers.Logger
	prefix         string
	classification string
	purpose        string
}

func NewArchiveWriter(conf *structures.Config, store interfaces.BlobStore, retrier *Retrier, logger providers.Logger) *ArchiveWriter {
	prefix := conf.Archive.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ArchiveWriter{
		store:          store,
		retrier:        retrier,
		logger:         logger,
		prefix:         prefix,
		classification: conf.Archive.Classification,
		purpose:        conf.Archive.Purpose,
	}
}

func (aw *ArchiveWriter) EnsureReady(ctx context.Context) error {
	return aw.retrier.Do(ctx, aw.store.EnsureReady)
}

// PathFor returns the object path for an archive file name. The same day
// always maps to the same path, so a re-run overwrites its object.
func (aw *ArchiveWriter) PathFor(fileName string) string {
	return aw.prefix + fileName
}

// Write serialises the payload and stores it with classification metadata.
func (aw *ArchiveWriter) Write(ctx context.Context, fileName string, payload ArchivePayload, exportedAt time.Time) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode archive %s: %w", fileName, err)
	}

	path := aw.PathFor(fileName)
	metadata := map[string]string{
		MetaExportedAt:         models.FormatCanonical(exportedAt),
		MetaDataClassification: aw.classification,
		MetaPurpose:            aw.purpose,
	}

	err = aw.retrier.Do(ctx, func(ctx context.Context) error {
		return aw.store.Put(ctx, path, body, archiveContentType, metadata)
	})
	if err != nil {
		return path, fmt.Errorf("write archive %s: %w", path, err)
	}

	aw.logger.Infof(providers.TypeExport, "Archive %s written (%d bytes)", path, len(body))
	return path, nil
}
