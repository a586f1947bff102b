package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/logger"
	"github.com/kailas-cloud/dicomgw/internal/metrics"
)

// Coordinator guarantees at most one archive retrieval per series at a time.
// Concurrent callers for the same series share the outcome of that retrieval.
type Coordinator struct {
	retriever Retriever
	cache     Cache
	locks     *LockRegistry
	logger    *zap.Logger
}

// New creates a coordinator. locks may be nil, in which case a private
// registry is used.
func New(r Retriever, c Cache, locks *LockRegistry, l *zap.Logger) *Coordinator {
	if locks == nil {
		locks = NewLockRegistry()
	}
	return &Coordinator{retriever: r, cache: c, locks: locks, logger: l}
}

// Locks exposes the registry for health and debugging.
func (c *Coordinator) Locks() *LockRegistry { return c.locks }

// EnsureAvailable makes the objects of a series available locally.
// Callers check the cache first and call this only on a miss.
//
// The retrieval itself runs detached from ctx: a caller that gives up gets
// ctx.Err() while the transfer continues for everyone else.
func (c *Coordinator) EnsureAvailable(ctx context.Context, study, series string) error {
	f, leader := c.locks.Acquire(series)
	if leader {
		go c.run(context.WithoutCancel(ctx), study, series)
	} else {
		metrics.RetrievalCoalescedTotal.Inc()
		logger.FromContext(ctx, c.logger).Debug("Joining in-flight retrieval",
			logger.SeriesFields(study, series)...)
	}

	select {
	case <-f.Done():
		return f.Err()
	case <-ctx.Done():
		return fmt.Errorf("wait for series %s: %w", series, ctx.Err())
	}
}

func (c *Coordinator) run(ctx context.Context, study, series string) {
	log := logger.FromContext(ctx, c.logger).With(logger.SeriesFields(study, series)...)

	var err error
	defer func() {
		if p := recover(); p != nil {
			err = domain.NewRetrievalError(study, series, fmt.Errorf("panic: %v", p))
		}
		c.locks.Release(series, err)
	}()

	metrics.InflightRetrievals.Inc()
	defer metrics.InflightRetrievals.Dec()

	start := time.Now()
	err = c.retrieve(ctx, study, series)
	duration := time.Since(start)
	metrics.RetrievalDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		log.Error("Retrieval failed", zap.Duration("duration", duration), zap.Error(err))
		return
	}
	metrics.RetrievalsTotal.WithLabelValues("ok").Inc()
	log.Info("Retrieval completed", zap.Duration("duration", duration))
}

func (c *Coordinator) retrieve(ctx context.Context, study, series string) error {
	if err := c.retriever.Retrieve(ctx, study, series, c.cache.StudyDir(study)); err != nil {
		return domain.NewRetrievalError(study, series, err)
	}
	// The objects are on disk; a failed index write only delays eviction.
	if err := c.cache.MarkRetrieved(ctx, study); err != nil {
		logger.FromContext(ctx, c.logger).Warn("Failed to index retrieved study",
			zap.String("study", study), zap.Error(err))
	}
	return nil
}
