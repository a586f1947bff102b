package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/logger"
	"github.com/kailas-cloud/dicomgw/internal/metrics"
)

// ObjectCache is the slice of the cache store the resolver reads.
type ObjectCache interface {
	ObjectPath(study, sop string) string
	Exists(path string) bool
	Touch(ctx context.Context, study string) error
}

// Availability ensures a series is on local disk.
type Availability interface {
	EnsureAvailable(ctx context.Context, study, series string) error
}

// Resolver turns an object reference into a local path, retrieving the
// series on a cache miss.
type Resolver struct {
	cache        ObjectCache
	coord        Availability
	refreshOnHit bool
	logger       *zap.Logger
}

// NewResolver creates a resolver. refreshOnHit extends the study's
// retention every time one of its objects is served from cache.
func NewResolver(c ObjectCache, coord Availability, refreshOnHit bool, l *zap.Logger) *Resolver {
	return &Resolver{cache: c, coord: coord, refreshOnHit: refreshOnHit, logger: l}
}

// Resolve returns the local path of ref. ErrObjectNotFound means the series
// was retrieved but the object is still absent.
func (r *Resolver) Resolve(ctx context.Context, ref domain.ObjectRef) (string, error) {
	path := r.cache.ObjectPath(ref.StudyUID, ref.InstanceUID)
	if r.cache.Exists(path) {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		if r.refreshOnHit {
			if err := r.cache.Touch(ctx, ref.StudyUID); err != nil {
				logger.FromContext(ctx, r.logger).Warn("Failed to refresh study retention",
					zap.String("study_uid", ref.StudyUID), zap.Error(err))
			}
		}
		return path, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	if err := r.coord.EnsureAvailable(ctx, ref.StudyUID, ref.SeriesUID); err != nil {
		return "", err
	}
	if !r.cache.Exists(path) {
		return "", fmt.Errorf("%w: %s", domain.ErrObjectNotFound, path)
	}
	return path, nil
}
