package domain

import "fmt"

const maxUIDLength = 64

// ValidateUID checks that a UID is safe to use as a cache path segment.
// DICOM UIDs are dot-separated digits; letters, '-' and '_' are tolerated for
// archives that issue non-conformant identifiers.
func ValidateUID(uid string) error {
	if uid == "" || len(uid) > maxUIDLength {
		return fmt.Errorf("%w: length %d", ErrInvalidUID, len(uid))
	}
	if uid == "." || uid == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	for _, c := range uid {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '.', c == '-', c == '_':
		default:
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidUID, c)
		}
	}
	return nil
}

// ObjectRef addresses one cached object.
type ObjectRef struct {
	StudyUID    string
	SeriesUID   string
	InstanceUID string
}

// Validate checks every UID of the reference.
func (o ObjectRef) Validate() error {
	for _, uid := range []string{o.StudyUID, o.SeriesUID, o.InstanceUID} {
		if err := ValidateUID(uid); err != nil {
			return err
		}
	}
	return nil
}
