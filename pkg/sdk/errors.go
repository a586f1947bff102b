package dicomgw

import "github.com/kailas-cloud/dicomgw/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidUID      = domain.ErrInvalidUID
	ErrObjectNotFound  = domain.ErrObjectNotFound
	ErrRetrievalFailed = domain.ErrRetrievalFailed
	ErrNoRecords       = domain.ErrNoRecords
	ErrParseFailure    = domain.ErrParseFailure
	ErrFindFailed      = domain.ErrFindFailed
)
