// Package cache manages the on-disk object tree and its retention.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

const objectExt = ".dcm"

// index is the consumer interface for the freshness index (ISP).
type index interface {
	Get(ctx context.Context, study string) (time.Time, bool, error)
	SetIfAbsent(ctx context.Context, study string, expiry time.Time) (bool, error)
	Set(ctx context.Context, study string, expiry time.Time) error
	Remove(ctx context.Context, study string) error
	ForEach(ctx context.Context, fn func(study string, expiry time.Time) error) error
}

// Store lays objects out as <root>/<studyUID>/<sopInstanceUID>.dcm and
// evicts study directories whose freshness entry has expired.
type Store struct {
	root      string
	retention time.Duration
	enabled   bool
	index     index
	now       func() time.Time
	evictions prometheus.Counter
	logger    *zap.Logger

	sweepMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithEvictionCounter counts removed study directories.
func WithEvictionCounter(c prometheus.Counter) Option {
	return func(s *Store) { s.evictions = c }
}

// New creates a cache store rooted at root. A negative retentionMinutes
// disables freshness tracking: retrieved studies are never indexed and
// therefore never evicted.
func New(root string, retentionMinutes int, idx index, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		root:      root,
		retention: time.Duration(retentionMinutes) * time.Minute,
		enabled:   retentionMinutes >= 0,
		index:     idx,
		now:       time.Now,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// StudyDir returns the directory holding a study's objects.
func (s *Store) StudyDir(study string) string {
	return filepath.Join(s.root, study)
}

// ObjectPath returns the path of a cached object.
func (s *Store) ObjectPath(study, sop string) string {
	return filepath.Join(s.root, study, sop+objectExt)
}

// Exists reports whether a regular file exists at path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// MarkRetrieved starts the retention clock for a study that has no entry yet.
// Repeated retrievals of the same study never extend the original expiry.
func (s *Store) MarkRetrieved(ctx context.Context, study string) error {
	if !s.enabled {
		return nil
	}
	if _, err := s.index.SetIfAbsent(ctx, study, s.now().Add(s.retention)); err != nil {
		return fmt.Errorf("mark %s retrieved: %w", study, err)
	}
	return nil
}

// Touch pushes a study's expiry to now + retention.
func (s *Store) Touch(ctx context.Context, study string) error {
	if !s.enabled {
		return nil
	}
	if err := s.index.Set(ctx, study, s.now().Add(s.retention)); err != nil {
		return fmt.Errorf("touch %s: %w", study, err)
	}
	return nil
}

// Sweep removes every study whose expiry is strictly before now, except
// active. Only one sweep runs at a time; a concurrent call returns 0 at once.
func (s *Store) Sweep(ctx context.Context, active string) (int, error) {
	if !s.sweepMu.TryLock() {
		return 0, nil
	}
	defer s.sweepMu.Unlock()

	now := s.now()
	var expired []string
	err := s.index.ForEach(ctx, func(study string, expiry time.Time) error {
		if study != active && expiry.Before(now) {
			expired = append(expired, study)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	evicted := 0
	var errs []error
	for _, study := range expired {
		if err := s.evict(ctx, study); err != nil {
			errs = append(errs, err)
			continue
		}
		evicted++
	}
	if evicted > 0 {
		s.logger.Info("cache sweep", zap.Int("evicted", evicted), zap.String("active", active))
	}
	return evicted, errors.Join(errs...)
}

// Clear wipes every study directory under the root and every index entry.
// Hidden directories (the move-mode incoming area) are left alone.
func (s *Store) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear: read %s: %w", s.root, err)
	}
	var errs []error
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}

	var studies []string
	if err := s.index.ForEach(ctx, func(study string, _ time.Time) error {
		studies = append(studies, study)
		return nil
	}); err != nil {
		errs = append(errs, err)
	}
	for _, study := range studies {
		if err := s.index.Remove(ctx, study); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("cache cleared", zap.String("root", s.root), zap.Int("studies", len(studies)))
	if len(errs) > 0 {
		return fmt.Errorf("clear: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Store) evict(ctx context.Context, study string) error {
	// Index keys come from our own writes, but never let one escape the root.
	if err := domain.ValidateUID(study); err != nil {
		s.logger.Warn("dropping malformed freshness entry", zap.String("study", study))
		return s.index.Remove(ctx, study)
	}
	if err := os.RemoveAll(s.StudyDir(study)); err != nil {
		return fmt.Errorf("evict %s: %w", study, err)
	}
	if err := s.index.Remove(ctx, study); err != nil {
		return fmt.Errorf("evict %s: %w", study, err)
	}
	if s.evictions != nil {
		s.evictions.Inc()
	}
	return nil
}
