package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"redemption-gate/internal/model"
	apperrors "redemption-gate/pkg/errors"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a seed file:
//
//	codes:
//	  - code: PROMO
//	    capacity: 100
//	    season: 1
type File struct {
	Codes []model.CreateCodeRequest `yaml:"codes"`
}

// CodeCreator creates a single code.
type CodeCreator interface {
	CreateCode(ctx context.Context, req *model.CreateCodeRequest) (*model.RedemptionCode, error)
}

// Load parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &f, nil
}

// Apply creates every code in f. Codes that already exist are left
// untouched so restarts never reset a consumed count.
func Apply(ctx context.Context, creator CodeCreator, f *File) (created int, err error) {
	for i := range f.Codes {
		req := f.Codes[i]
		if _, err := creator.CreateCode(ctx, &req); err != nil {
			if errors.Is(err, apperrors.ErrCodeAlreadyExists) {
				log.WithField("code", req.Code).Debug("seed code already exists")
				continue
			}
			return created, fmt.Errorf("seed code %q: %w", req.Code, err)
		}
		created++
	}
	log.WithFields(log.Fields{"created": created, "total": len(f.Codes)}).Info("seeded redemption codes")
	return created, nil
}
