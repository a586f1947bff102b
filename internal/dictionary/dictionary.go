// Package dictionary maps DICOM attribute keywords to tag identifiers using
// the data dictionary bundled with github.com/suyashkumar/dicom.
package dictionary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// unknownVR is reported for tags missing from the dictionary (private tags included).
const unknownVR = "UN"

// Resolve looks up a keyword such as "PatientName" and returns its tag id.
// false means the name is not a dictionary keyword; callers decide whether to
// treat the input as a literal tag id.
func Resolve(name string) (domain.TagID, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	info, err := tag.FindByName(name)
	if err != nil {
		return "", false
	}
	return FromTag(info.Tag), true
}

// Normalize resolves a keyword, falling back to a literal 8-hex tag id.
func Normalize(s string) (domain.TagID, bool) {
	if id, ok := Resolve(s); ok {
		return id, true
	}
	s = strings.TrimSpace(s)
	if IsTagID(s) {
		return domain.TagID(strings.ToUpper(s)), true
	}
	return "", false
}

// IsTagID reports whether s is 8 hex digits.
func IsTagID(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 32)
	return err == nil
}

// FromTag formats a library tag as a TagID.
func FromTag(t tag.Tag) domain.TagID {
	return domain.TagID(fmt.Sprintf("%04X%04X", t.Group, t.Element))
}

// ToTag parses a TagID into a library tag.
func ToTag(id domain.TagID) (tag.Tag, error) {
	if !IsTagID(string(id)) {
		return tag.Tag{}, fmt.Errorf("malformed tag id %q", id)
	}
	v, err := strconv.ParseUint(string(id), 16, 32)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("parse tag id %q: %w", id, err)
	}
	return tag.Tag{Group: uint16(v >> 16), Element: uint16(v & 0xFFFF)}, nil
}

// VR returns the first dictionary value representation for the tag.
func VR(id domain.TagID) string {
	t, err := ToTag(id)
	if err != nil {
		return unknownVR
	}
	info, err := tag.Find(t)
	if err != nil || len(info.VRs) == 0 {
		return unknownVR
	}
	return info.VRs[0]
}
