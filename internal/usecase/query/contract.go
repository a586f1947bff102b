package query

import (
	"context"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// Finder executes a C-FIND against the archive.
type Finder interface {
	Find(ctx context.Context, env domain.Envelope) ([]domain.Record, error)
}
