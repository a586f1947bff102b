package metadata

import "github.com/kailas-cloud/dicomgw/internal/domain"

// Display defaults used when the object lacks the attribute.
const (
	DefaultWindowCenter     = 40.0
	DefaultWindowWidth      = 80.0
	DefaultRescaleIntercept = 0.0
	DefaultRescaleSlope     = 1.0
)

// DefaultPixelSpacing is reported when PixelSpacing is absent.
var DefaultPixelSpacing = []any{1.0, 1.0}

var (
	stringTags = []domain.TagID{domain.TagModality, domain.TagPhotometricInterpretation}
	intTags    = []domain.TagID{
		domain.TagSamplesPerPixel,
		domain.TagRows,
		domain.TagColumns,
		domain.TagBitsAllocated,
		domain.TagBitsStored,
		domain.TagHighBit,
		domain.TagPixelRepresentation,
	}
)

// Derive computes the display attributes of one parsed object.
func Derive(attrs Attributes) domain.Record {
	out := make(domain.Record, 18)

	for _, t := range stringTags {
		attr := domain.Attribute{VR: "CS"}
		if s, ok := attrs.String(t); ok {
			attr.Value = []any{s}
		}
		out[t] = attr
	}
	for _, t := range intTags {
		attr := domain.Attribute{VR: "US"}
		if n, ok := attrs.Int(t); ok {
			attr.Value = []any{n}
		}
		out[t] = attr
	}

	out[domain.TagPixelSpacing] = domain.Attribute{VR: "DS", Value: floatsOr(attrs, domain.TagPixelSpacing, DefaultPixelSpacing)}
	out[domain.TagWindowCenter] = domain.Attribute{VR: "DS", Value: []any{firstOr(attrs, domain.TagWindowCenter, DefaultWindowCenter)}}
	out[domain.TagWindowWidth] = domain.Attribute{VR: "DS", Value: []any{firstOr(attrs, domain.TagWindowWidth, DefaultWindowWidth)}}
	out[domain.TagRescaleIntercept] = domain.Attribute{VR: "DS", Value: []any{firstOr(attrs, domain.TagRescaleIntercept, DefaultRescaleIntercept)}}
	out[domain.TagRescaleSlope] = domain.Attribute{VR: "DS", Value: []any{firstOr(attrs, domain.TagRescaleSlope, DefaultRescaleSlope)}}

	for _, t := range []domain.TagID{domain.TagImageOrientationPatient, domain.TagImagePositionPatient} {
		if v := floatsOr(attrs, t, nil); v != nil {
			out[t] = domain.Attribute{VR: "DS", Value: v}
		}
	}
	return out
}

// Enrich copies the attributes derived from one representative object onto
// every record. All instances of a series are assumed to share geometry.
func Enrich(records []domain.Record, attrs Attributes) []domain.Record {
	derived := Derive(attrs)
	for _, rec := range records {
		for k, v := range derived {
			rec[k] = v
		}
	}
	return records
}

func floatsOr(attrs Attributes, t domain.TagID, def []any) []any {
	vals, ok := attrs.Floats(t)
	if !ok {
		return def
	}
	out := make([]any, len(vals))
	for i, f := range vals {
		out[i] = f
	}
	return out
}

func firstOr(attrs Attributes, t domain.TagID, def float64) float64 {
	if vals, ok := attrs.Floats(t); ok {
		return vals[0]
	}
	return def
}
