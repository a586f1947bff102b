package dicomgw

import (
	"net/url"
	"strconv"

	"github.com/kailas-cloud/dicomgw/internal/domain"
	"github.com/kailas-cloud/dicomgw/internal/usecase/query"
)

// Retrieval modes.
const (
	RetrievalGet  = "get"
	RetrievalMove = "move"
)

// Query is a study or series search.
type Query struct {
	// Match maps attribute keywords (or 8-hex tags) to match values.
	Match map[string]string
	// IncludeFields adds return keys beyond the level defaults.
	IncludeFields []string
	Offset        int
	Limit         int
}

// Attribute is one element in the DICOM JSON model.
type Attribute struct {
	VR    string
	Value []any
}

// Record is one search result or metadata entry keyed by 8-hex tag.
type Record map[string]Attribute

// String returns the first value of tag as a string, or "".
func (r Record) String(tag string) string {
	attr, ok := r[tag]
	if !ok || len(attr.Value) == 0 {
		return ""
	}
	s, _ := attr.Value[0].(string)
	return s
}

// ObjectRef addresses one instance.
type ObjectRef struct {
	StudyUID    string
	SeriesUID   string
	InstanceUID string
}

func (q Query) values() url.Values {
	v := make(url.Values, len(q.Match)+3)
	for k, val := range q.Match {
		v.Set(k, val)
	}
	for _, f := range q.IncludeFields {
		v.Add(query.ParamIncludeField, f)
	}
	if q.Offset > 0 {
		v.Set(query.ParamOffset, strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		v.Set(query.ParamLimit, strconv.Itoa(q.Limit))
	}
	return v
}

func (o ObjectRef) toInternal() domain.ObjectRef {
	return domain.ObjectRef{StudyUID: o.StudyUID, SeriesUID: o.SeriesUID, InstanceUID: o.InstanceUID}
}

func fromInternalRecords(in []domain.Record) []Record {
	out := make([]Record, len(in))
	for i, rec := range in {
		r := make(Record, len(rec))
		for tag, attr := range rec {
			r[string(tag)] = Attribute{VR: attr.VR, Value: attr.Value}
		}
		out[i] = r
	}
	return out
}
