package dicomobj

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/kailas-cloud/dicomgw/internal/dictionary"
	"github.com/kailas-cloud/dicomgw/internal/domain"
)

const metaGroup = 0x0002

// ReadRecord parses a C-FIND response dataset into a DICOM JSON record.
func ReadRecord(path string) (domain.Record, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParseFailure, path, err)
	}
	return ToRecord(ds), nil
}

// ToRecord converts a dataset into the DICOM JSON model. File meta elements,
// the query level, sequences and binary values are dropped.
func ToRecord(ds dicom.Dataset) domain.Record {
	rec := make(domain.Record, len(ds.Elements))
	for _, elem := range ds.Elements {
		if elem.Tag.Group == metaGroup || elem.Tag == tag.QueryRetrieveLevel {
			continue
		}
		id := dictionary.FromTag(elem.Tag)
		vr := elem.RawValueRepresentation
		if vr == "" {
			vr = dictionary.VR(id)
		}
		if vr == "SQ" || elem.Value == nil {
			continue
		}
		values, ok := jsonValues(vr, elem.Value.GetValue())
		if !ok {
			continue
		}
		rec[id] = domain.Attribute{VR: vr, Value: values}
	}
	return rec
}

// jsonValues maps a parsed value onto DICOM JSON primitives. ok=false means
// the value has no JSON primitive form.
func jsonValues(vr string, v any) ([]any, bool) {
	var out []any
	switch vals := v.(type) {
	case []string:
		for _, s := range vals {
			s = strings.TrimRight(s, " \x00")
			if s == "" {
				continue
			}
			out = append(out, stringValue(vr, s))
		}
	case []int:
		for _, n := range vals {
			out = append(out, n)
		}
	case []float64:
		for _, f := range vals {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				continue
			}
			out = append(out, f)
		}
	default:
		return nil, false
	}
	return out, true
}

func stringValue(vr, s string) any {
	switch vr {
	case "PN":
		return domain.PersonName{Alphabetic: s}
	case "IS":
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	case "DS":
		// NaN and Inf parse but have no JSON form; keep the raw string.
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return s
}
