package dicomgw

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/usecase/query"
)

// SearchStudies runs a study-level search. Archive failures and rejected
// PatientName matches yield an empty result, like the HTTP API.
func (c *Client) SearchStudies(ctx context.Context, q Query) (_ []Record, err error) {
	start := time.Now()
	var n int
	defer func() { c.obs.observe("studies.search", start, err, "records", n) }()

	records, err := c.queries.Find(ctx, domain.LevelStudy, q.values(), query.StudyDefaults)
	if err != nil {
		return nil, fmt.Errorf("search studies: %w", err)
	}
	n = len(records)
	return fromInternalRecords(records), nil
}

// SearchSeries runs a series-level search within one study.
func (c *Client) SearchSeries(ctx context.Context, study string, q Query) (_ []Record, err error) {
	start := time.Now()
	var n int
	defer func() { c.obs.observe("series.search", start, err, "study_uid", study, "records", n) }()

	if err = domain.ValidateUID(study); err != nil {
		return nil, fmt.Errorf("search series: %w", err)
	}
	params := q.values()
	params.Set("StudyInstanceUID", study)

	records, err := c.queries.Find(ctx, domain.LevelSeries, params, query.SeriesDefaults)
	if err != nil {
		return nil, fmt.Errorf("search series: %w", err)
	}
	n = len(records)
	return fromInternalRecords(records), nil
}

// SeriesMetadata lists the instances of a series with display attributes
// taken from its first instance, retrieving the series on a cache miss.
// On error the records found so far are returned along with it.
func (c *Client) SeriesMetadata(ctx context.Context, study, series string) (_ []Record, err error) {
	start := time.Now()
	defer func() { c.obs.observe("series.metadata", start, err, "study_uid", study, "series_uid", series) }()

	for _, uid := range []string{study, series} {
		if err = domain.ValidateUID(uid); err != nil {
			return nil, fmt.Errorf("series metadata: %w", err)
		}
	}

	records, err := c.metadata.SeriesMetadata(ctx, study, series, url.Values{})
	if err != nil {
		return fromInternalRecords(records), fmt.Errorf("series metadata: %w", err)
	}
	return fromInternalRecords(records), nil
}
