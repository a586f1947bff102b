// Package dicomobj reads cached DICOM objects with github.com/suyashkumar/dicom.
package dicomobj

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/kailas-cloud/dicomgw/internal/dictionary"
	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// Object is a parsed dataset with typed accessors keyed by TagID.
type Object struct {
	ds dicom.Dataset
}

// NewObject wraps a parsed dataset.
func NewObject(ds dicom.Dataset) *Object {
	return &Object{ds: ds}
}

// ReadAttributes parses the file at path without loading pixel data.
func ReadAttributes(path string) (*Object, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParseFailure, path, err)
	}
	return &Object{ds: ds}, nil
}

// Strings returns the values of a string-typed element.
func (o *Object) Strings(id domain.TagID) ([]string, bool) {
	v, ok := o.value(id)
	if !ok {
		return nil, false
	}
	switch vals := v.(type) {
	case []string:
		out := make([]string, 0, len(vals))
		for _, s := range vals {
			out = append(out, strings.TrimRight(s, " \x00"))
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

// String returns the first value of a string element.
func (o *Object) String(id domain.TagID) (string, bool) {
	vals, ok := o.Strings(id)
	if !ok || vals[0] == "" {
		return "", false
	}
	return vals[0], true
}

// Int returns the first value of an integer element. IS strings are parsed.
func (o *Object) Int(id domain.TagID) (int, bool) {
	v, ok := o.value(id)
	if !ok {
		return 0, false
	}
	switch vals := v.(type) {
	case []int:
		if len(vals) > 0 {
			return vals[0], true
		}
	case []string:
		if len(vals) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(vals[0]))
			return n, err == nil
		}
	}
	return 0, false
}

// Floats returns the numeric values of an element. DS/IS strings are parsed
// and values joined with '\' are split. Any unparsable or non-finite value
// fails the lookup.
func (o *Object) Floats(id domain.TagID) ([]float64, bool) {
	v, ok := o.value(id)
	if !ok {
		return nil, false
	}
	var out []float64
	switch vals := v.(type) {
	case []float64:
		for _, f := range vals {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, false
			}
			out = append(out, f)
		}
	case []int:
		for _, n := range vals {
			out = append(out, float64(n))
		}
	case []string:
		for _, s := range vals {
			for _, part := range strings.Split(s, `\`) {
				part = strings.TrimSpace(strings.TrimRight(part, "\x00"))
				if part == "" {
					continue
				}
				f, err := strconv.ParseFloat(part, 64)
				if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
					return nil, false
				}
				out = append(out, f)
			}
		}
	default:
		return nil, false
	}
	return out, len(out) > 0
}

func (o *Object) value(id domain.TagID) (any, bool) {
	t, err := dictionary.ToTag(id)
	if err != nil {
		return nil, false
	}
	elem, err := o.ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil, false
	}
	return elem.Value.GetValue(), true
}

// ErrNoPixelData is returned by PixelData for objects without a PixelData element.
var ErrNoPixelData = errors.New("no pixel data")

// PixelData returns the PixelData value bytes of the file at path: the raw
// value for native transfer syntaxes, the first fragment for encapsulated ones.
func PixelData(path string) ([]byte, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipProcessingPixelDataValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParseFailure, path, err)
	}
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParseFailure, path, ErrNoPixelData)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unexpected pixel data value %T",
			domain.ErrParseFailure, path, elem.Value.GetValue())
	}

	switch {
	case info.IsEncapsulated && len(info.Frames) > 0:
		return info.Frames[0].EncapsulatedData.Data, nil
	case info.IntentionallyUnprocessed:
		return info.UnprocessedValueData, nil
	default:
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParseFailure, path, ErrNoPixelData)
	}
}

// SOPInstanceUID reads only enough of the file to return its SOP Instance UID.
func SOPInstanceUID(path string) (string, error) {
	obj, err := ReadAttributes(path)
	if err != nil {
		return "", err
	}
	uid, ok := obj.String(domain.TagSOPInstanceUID)
	if !ok {
		return "", fmt.Errorf("%w: %s: missing SOPInstanceUID", domain.ErrParseFailure, path)
	}
	return uid, nil
}

// Reader exposes the package functions as methods for consumer interfaces.
type Reader struct{}

// ReadAttributes calls the package-level ReadAttributes.
func (Reader) ReadAttributes(path string) (*Object, error) { return ReadAttributes(path) }

// PixelData calls the package-level PixelData.
func (Reader) PixelData(path string) ([]byte, error) { return PixelData(path) }
