package metadata

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/logger"
	"github.com/kailas-cloud/dicomgw/internal/usecase/query"
)

// Service builds series metadata: instance-level find results enriched
// with display attributes parsed from one cached instance.
type Service struct {
	finder   Finder
	resolver Resolver
	reader   ObjectReader
	logger   *zap.Logger
}

// New creates a metadata service.
func New(f Finder, r Resolver, reader ObjectReader, l *zap.Logger) *Service {
	return &Service{finder: f, resolver: r, reader: reader, logger: l}
}

// SeriesMetadata returns the enriched instances of a series. On error the
// un-enriched records are still returned so callers can send them along
// with the failure status.
func (s *Service) SeriesMetadata(
	ctx context.Context, study, series string, params url.Values,
) ([]domain.Record, error) {
	q := cloneValues(params)
	q.Set("StudyInstanceUID", study)
	q.Set("SeriesInstanceUID", series)

	records, err := s.finder.Find(ctx, domain.LevelImage, q, query.InstanceDefaults)
	if err != nil {
		return records, fmt.Errorf("find instances: %w", err)
	}
	if len(records) == 0 {
		return records, fmt.Errorf("series %s: %w", series, domain.ErrNoRecords)
	}

	sop, ok := records[0].String(domain.TagSOPInstanceUID)
	if !ok {
		return records, fmt.Errorf("%w: first instance of series %s has no SOPInstanceUID",
			domain.ErrParseFailure, series)
	}
	ref := domain.ObjectRef{StudyUID: study, SeriesUID: series, InstanceUID: sop}
	if err := ref.Validate(); err != nil {
		return records, fmt.Errorf("representative instance: %w", err)
	}

	log := logger.FromContext(ctx, s.logger).With(logger.SeriesFields(study, series)...)

	path, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		log.Error("Representative instance unavailable", zap.String("sop_uid", sop), zap.Error(err))
		return records, err
	}

	obj, err := s.reader.ReadAttributes(path)
	if err != nil {
		log.Error("Failed to parse representative instance", zap.String("path", path), zap.Error(err))
		return records, err
	}

	return Enrich(records, obj), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
