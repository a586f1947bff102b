package object

import (
	"context"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// Resolver returns the local path of an object, retrieving it on a miss.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.ObjectRef) (string, error)
}

// PixelReader extracts the PixelData value of a cached object.
type PixelReader interface {
	PixelData(path string) ([]byte, error)
}

// Sweeper evicts expired studies other than active.
type Sweeper interface {
	Sweep(ctx context.Context, active string) (int, error)
}
