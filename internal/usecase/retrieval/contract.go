package retrieval

import "context"

// Retriever pulls every object of a series from the archive into dest.
// Implementations block until the transfer ends.
type Retriever interface {
	Retrieve(ctx context.Context, study, series, dest string) error
}

// Cache is the slice of the cache store the coordinator writes to.
type Cache interface {
	StudyDir(study string) string
	MarkRetrieved(ctx context.Context, study string) error
}
