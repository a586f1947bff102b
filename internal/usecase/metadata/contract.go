package metadata

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/dicomgw/internal/dicomobj"
	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// Finder runs instance-level queries.
type Finder interface {
	Find(ctx context.Context, level domain.Level, params url.Values, defaults []string) ([]domain.Record, error)
}

// Resolver returns the local path of an object, retrieving it on a miss.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.ObjectRef) (string, error)
}

// ObjectReader parses a cached object without its pixel data.
type ObjectReader interface {
	ReadAttributes(path string) (*dicomobj.Object, error)
}

// Attributes is the read side of a parsed object.
type Attributes interface {
	String(id domain.TagID) (string, bool)
	Int(id domain.TagID) (int, bool)
	Floats(id domain.TagID) ([]float64, bool)
}
