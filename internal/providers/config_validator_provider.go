package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gookit/validate"

	"hed/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

// Validate checks struct tags first, then the rules that span several fields.
func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return v.Errors
	}

	switch cv.conf.Archive.Driver {
	case "s3":
		if cv.conf.Archive.Bucket == "" {
			return errors.New("archive.bucket is required for the s3 driver")
		}
		if cv.conf.Archive.Region == "" {
			return errors.New("archive.region is required for the s3 driver")
		}
	case "local":
		if cv.conf.Archive.Dir == "" {
			return errors.New("archive.dir is required for the local driver")
		}
	}

	if _, err := time.Parse("15:04", cv.conf.Export.DailyAt); err != nil {
		return fmt.Errorf("export.dailyAt must be HH:MM: %w", err)
	}
	if cv.conf.Export.LedgerSize < 0 {
		return errors.New("export.ledgerSize must not be negative")
	}
	return nil
}
