package domain

import (
	"encoding/json"
	"testing"
)

func TestTagID_Group(t *testing.T) {
	if got := TagPatientName.Group(); got != "0010,0010" {
		t.Errorf("Group() = %q, want 0010,0010", got)
	}
	if got := TagID("bogus").Group(); got != "bogus" {
		t.Errorf("Group() on malformed id = %q, want passthrough", got)
	}
}

func TestEnvelope_ReturnKeys_DeduplicatesInOrder(t *testing.T) {
	env := Envelope{
		Level: LevelStudy,
		Tags: []TagValue{
			{Tag: TagStudyDate},
			{Tag: TagPatientName},
			{Tag: TagStudyDate},
			{Tag: TagPatientID, Value: "P1"},
		},
	}
	got := env.ReturnKeys()
	want := []TagID{TagStudyDate, TagPatientName, TagPatientID}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"study", LevelStudy, true},
		{"SERIES", LevelSeries, true},
		{"instance", LevelImage, true},
		{"IMAGE", LevelImage, true},
		{"patient", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseLevel(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseLevel(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRecord_JSONShape(t *testing.T) {
	rec := Record{
		TagRows:        {Value: []any{512}, VR: "US"},
		TagPatientName: {VR: "PN"},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"00100010":{"vr":"PN"},"00280010":{"Value":[512],"vr":"US"}}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestRecord_String(t *testing.T) {
	rec := Record{
		TagSOPInstanceUID: {Value: []any{"1.2.3"}, VR: "UI"},
		TagRows:           {Value: []any{512}, VR: "US"},
		TagModality:       {VR: "CS"},
	}
	if s, ok := rec.String(TagSOPInstanceUID); !ok || s != "1.2.3" {
		t.Errorf("String(SOPInstanceUID) = %q,%v", s, ok)
	}
	if _, ok := rec.String(TagRows); ok {
		t.Error("String on a numeric value should report false")
	}
	if _, ok := rec.String(TagModality); ok {
		t.Error("String on an empty attribute should report false")
	}
}
