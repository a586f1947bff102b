package dicomgw

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/usecase/query"
)

// Frame returns the raw PixelData of an instance. Multi-frame objects are
// returned whole.
func (c *Client) Frame(ctx context.Context, ref ObjectRef) (_ []byte, err error) {
	start := time.Now()
	defer func() { c.obs.observe("object.frame", start, err, "sop_uid", ref.InstanceUID) }()

	data, err := c.objects.Frame(ctx, ref.toInternal())
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	return data, nil
}

// Instance returns the whole Part 10 file of an instance. Expired studies
// are swept in the background afterwards.
func (c *Client) Instance(ctx context.Context, ref ObjectRef) (_ []byte, err error) {
	start := time.Now()
	defer func() { c.obs.observe("object.instance", start, err, "sop_uid", ref.InstanceUID) }()

	data, err := c.objects.Instance(ctx, ref.toInternal())
	if err != nil {
		return nil, fmt.Errorf("instance: %w", err)
	}
	return data, nil
}

// Prefetch makes sure every instance of a series is in the cache. The
// series is retrieved only when the archive lists an instance that is not
// cached yet, or lists nothing; a retrieval already in flight is joined.
func (c *Client) Prefetch(ctx context.Context, study, series string) (err error) {
	start := time.Now()
	cached := false
	defer func() {
		c.obs.observe("series.prefetch", start, err, "study_uid", study, "series_uid", series, "cached", cached)
	}()

	for _, uid := range []string{study, series} {
		if err = domain.ValidateUID(uid); err != nil {
			return fmt.Errorf("prefetch: %w", err)
		}
	}
	if cached = c.seriesCached(ctx, study, series); cached {
		return nil
	}
	if err = c.available.EnsureAvailable(ctx, study, series); err != nil {
		return fmt.Errorf("prefetch: %w", err)
	}
	return nil
}

// seriesCached lists the series' instances and checks each one locally.
// An empty or failed listing counts as not cached.
func (c *Client) seriesCached(ctx context.Context, study, series string) bool {
	q := url.Values{}
	q.Set("StudyInstanceUID", study)
	q.Set("SeriesInstanceUID", series)
	records, err := c.queries.Find(ctx, domain.LevelImage, q, query.InstanceDefaults)
	if err != nil || len(records) == 0 {
		return false
	}
	for _, rec := range records {
		sop, ok := rec.String(domain.TagSOPInstanceUID)
		if !ok || domain.ValidateUID(sop) != nil || !c.cache.Exists(c.cache.ObjectPath(study, sop)) {
			return false
		}
	}
	return true
}

// Sweep evicts every expired study from the cache and returns how many
// were removed.
func (c *Client) Sweep(ctx context.Context) (_ int, err error) {
	start := time.Now()
	var n int
	defer func() { c.obs.observe("cache.sweep", start, err, "evicted", n) }()

	n, err = c.sweeper.Sweep(ctx, "")
	if err != nil {
		return n, fmt.Errorf("sweep: %w", err)
	}
	return n, nil
}
