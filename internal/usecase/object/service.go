package object

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/logger"
)

// Service serves pixel data and whole objects from the local cache.
type Service struct {
	resolver Resolver
	pixels   PixelReader
	sweeper  Sweeper
	logger   *zap.Logger

	// sweepDone is signalled after each background sweep (tests only).
	sweepDone func()
}

// New creates an object service. sweeper may be nil.
func New(r Resolver, p PixelReader, sw Sweeper, l *zap.Logger) *Service {
	return &Service{resolver: r, pixels: p, sweeper: sw, logger: l}
}

// Frame returns the raw PixelData of an instance. Multi-frame objects are
// returned whole; frame selection is not supported.
func (s *Service) Frame(ctx context.Context, ref domain.ObjectRef) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	path, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	data, err := s.pixels.PixelData(path)
	if err != nil {
		return nil, fmt.Errorf("read pixel data: %w", err)
	}
	return data, nil
}

// Instance returns the whole Part 10 file of an instance. Once ref is valid,
// expired studies other than ref's are swept in the background whether or
// not the object could be served.
func (s *Service) Instance(ctx context.Context, ref domain.ObjectRef) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	defer s.sweepAsync(context.WithoutCancel(ctx), ref.StudyUID)

	path, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *Service) sweepAsync(ctx context.Context, active string) {
	if s.sweeper == nil {
		return
	}
	go func() {
		if s.sweepDone != nil {
			defer s.sweepDone()
		}
		if _, err := s.sweeper.Sweep(ctx, active); err != nil {
			logger.FromContext(ctx, s.logger).Warn("Cache sweep failed", zap.Error(err))
		}
	}()
}
