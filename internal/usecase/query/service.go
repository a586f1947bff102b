package query

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/dictionary"
	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/logger"
	"github.com/kailas-cloud/dicomgw/internal/metrics"
)

// Service runs QIDO-style queries against the archive.
type Service struct {
	translator *Translator
	finder     Finder
	logger     *zap.Logger
}

// New creates a query service.
func New(t *Translator, f Finder, l *zap.Logger) *Service {
	return &Service{translator: t, finder: f, logger: l}
}

// Find translates params, runs the C-FIND and pages the result client-side.
// Rejected queries and archive failures yield an empty list, never an error:
// a dead archive looks like "no matches" to the viewer.
func (s *Service) Find(
	ctx context.Context, level domain.Level, params url.Values, defaults []string,
) ([]domain.Record, error) {
	log := logger.FromContext(ctx, s.logger)
	lvl := string(level)

	env, err := s.translator.Translate(level, params, defaults)
	if err != nil {
		if errors.Is(err, domain.ErrQueryRejected) {
			metrics.FindRequestsTotal.WithLabelValues(lvl, "rejected").Inc()
			log.Debug("Query rejected", zap.String("level", lvl), zap.Error(err))
			return []domain.Record{}, nil
		}
		return nil, err
	}

	start := time.Now()
	records, err := s.finder.Find(ctx, env)
	metrics.FindDuration.WithLabelValues(lvl).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FindRequestsTotal.WithLabelValues(lvl, "error").Inc()
		log.Error("Find failed", zap.String("level", lvl), zap.Error(err))
		return []domain.Record{}, nil
	}
	metrics.FindRequestsTotal.WithLabelValues(lvl, "ok").Inc()

	FillMissing(records, env.ReturnKeys())

	return Page(records, intParam(params, ParamOffset), intParam(params, ParamLimit)), nil
}

// FillMissing gives every record every key, using an empty attribute with
// the dictionary VR where the archive returned nothing.
func FillMissing(records []domain.Record, keys []domain.TagID) {
	for _, rec := range records {
		for _, k := range keys {
			if _, ok := rec[k]; !ok {
				rec[k] = domain.Attribute{VR: dictionary.VR(k)}
			}
		}
	}
}

// Page applies offset and limit. limit <= 0 means unlimited.
func Page(records []domain.Record, offset, limit int) []domain.Record {
	if offset >= len(records) {
		return []domain.Record{}
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// intParam parses a non-negative integer parameter; anything else is 0.
func intParam(params url.Values, name string) int {
	n, err := strconv.Atoi(params.Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
