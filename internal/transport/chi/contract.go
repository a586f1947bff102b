package chi

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	healthuc "github.com/kailas-cloud/dicomgw/internal/usecase/health"
)

// Querier runs study and series searches.
type Querier interface {
	Find(ctx context.Context, level domain.Level, params url.Values, defaults []string) ([]domain.Record, error)
}

// MetadataProvider builds enriched series metadata.
type MetadataProvider interface {
	SeriesMetadata(ctx context.Context, study, series string, params url.Values) ([]domain.Record, error)
}

// ObjectProvider serves pixel data and whole instances.
type ObjectProvider interface {
	Frame(ctx context.Context, ref domain.ObjectRef) ([]byte, error)
	Instance(ctx context.Context, ref domain.ObjectRef) ([]byte, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
