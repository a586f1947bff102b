package domain

// Attribute is a single element in the DICOM JSON model.
type Attribute struct {
	Value []any  `json:"Value,omitempty"`
	VR    string `json:"vr"`
}

// Record is one find result (or enriched metadata entry), keyed by tag.
type Record map[TagID]Attribute

// String returns the first value of the tag as a string.
func (r Record) String(t TagID) (string, bool) {
	attr, ok := r[t]
	if !ok || len(attr.Value) == 0 {
		return "", false
	}
	s, ok := attr.Value[0].(string)
	return s, ok && s != ""
}

// Clone returns a shallow copy of the record (values are shared).
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// PersonName is the DICOM JSON encoding of a PN value.
type PersonName struct {
	Alphabetic string `json:"Alphabetic,omitempty"`
}
