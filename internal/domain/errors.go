package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryRejected signals a query refused before reaching the archive
	// (e.g. a patient name shorter than the configured minimum).
	ErrQueryRejected = errors.New("query rejected")
	// ErrFindFailed signals an archive C-FIND failure or a malformed answer.
	ErrFindFailed = errors.New("find failed")
	// ErrRetrievalFailed signals a failed C-GET/C-MOVE.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrObjectNotFound signals a missing local object after a retrieval attempt.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNoRecords signals an empty find result where at least one record is required.
	ErrNoRecords = errors.New("no records found")
	// ErrParseFailure signals a malformed object or a missing required element.
	ErrParseFailure = errors.New("parse failure")
	// ErrInvalidUID signals a UID that cannot be used as a path segment.
	ErrInvalidUID = errors.New("invalid uid")
)

// RetrievalError carries the series whose retrieval failed.
type RetrievalError struct {
	StudyUID  string
	SeriesUID string
	Err       error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: study %s series %s: %v", ErrRetrievalFailed.Error(), e.StudyUID, e.SeriesUID, e.Err)
}

func (e *RetrievalError) Unwrap() []error { return []error{ErrRetrievalFailed, e.Err} }

// NewRetrievalError wraps a retriever failure for the given series.
func NewRetrievalError(studyUID, seriesUID string, err error) error {
	return &RetrievalError{StudyUID: studyUID, SeriesUID: seriesUID, Err: err}
}
