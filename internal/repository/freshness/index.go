// Package freshness keeps per-study retention deadlines in a key-value store.
package freshness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/dicomgw/internal/db"
)

const keySegment = "fresh:"

// store is the consumer interface for the freshness index (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Index maps study UID to expiry time. Values are unix milliseconds
// stored under <prefix>fresh:<studyUID>.
type Index struct {
	store  store
	prefix string
}

// New creates a freshness index. prefix is the global key prefix (e.g. "dicomgw:").
func New(s store, prefix string) *Index {
	return &Index{store: s, prefix: prefix + keySegment}
}

// Get returns the expiry of a study. ok=false when the study is not indexed.
func (i *Index) Get(ctx context.Context, study string) (time.Time, bool, error) {
	data, err := i.store.Get(ctx, i.key(study))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("freshness GET %s: %w", study, err)
	}
	expiry, err := decode(data)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("freshness GET %s parse: %w", study, err)
	}
	return expiry, true, nil
}

// SetIfAbsent records expiry for a study that has no entry yet.
// Returns false when an entry already exists; the existing expiry is kept.
func (i *Index) SetIfAbsent(ctx context.Context, study string, expiry time.Time) (bool, error) {
	ok, err := i.store.SetNX(ctx, i.key(study), encode(expiry))
	if err != nil {
		return false, fmt.Errorf("freshness SETNX %s: %w", study, err)
	}
	return ok, nil
}

// Set overwrites the expiry of a study.
func (i *Index) Set(ctx context.Context, study string, expiry time.Time) error {
	if err := i.store.Set(ctx, i.key(study), encode(expiry)); err != nil {
		return fmt.Errorf("freshness SET %s: %w", study, err)
	}
	return nil
}

// Remove deletes the entry for a study.
func (i *Index) Remove(ctx context.Context, study string) error {
	if err := i.store.Del(ctx, i.key(study)); err != nil {
		return fmt.Errorf("freshness DEL %s: %w", study, err)
	}
	return nil
}

// ForEach calls fn for every indexed study. Entries that vanish or fail to
// decode between the scan and the read are skipped. Iteration stops at the
// first error returned by fn.
func (i *Index) ForEach(ctx context.Context, fn func(study string, expiry time.Time) error) error {
	keys, err := i.store.Scan(ctx, i.prefix+"*")
	if err != nil {
		return fmt.Errorf("freshness SCAN: %w", err)
	}
	for _, key := range keys {
		data, err := i.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return fmt.Errorf("freshness GET %s: %w", key, err)
		}
		expiry, err := decode(data)
		if err != nil {
			continue
		}
		if err := fn(strings.TrimPrefix(key, i.prefix), expiry); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) key(study string) string {
	return i.prefix + study
}

func encode(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UnixMilli(), 10))
}

func decode(data []byte) (time.Time, error) {
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q: %w", data, err)
	}
	return time.UnixMilli(ms), nil
}
