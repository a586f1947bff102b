package query

import (
	"errors"
	"net/url"
	"testing"

	"github.com/kailas-cloud/dicomgw/internal/domain"
)

var (
	testSource = domain.Peer{AET: "DICOMGW", Host: "0.0.0.0", Port: 9999}
	testTarget = domain.Peer{AET: "PACS", Host: "pacs.local", Port: 104}
)

func tags(env domain.Envelope) []domain.TagValue { return env.Tags }

func TestTranslate_DefaultsOnly(t *testing.T) {
	tr := NewTranslator(testSource, testTarget, Policy{})

	env, err := tr.Translate(domain.LevelStudy, url.Values{}, StudyDefaults)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Level != domain.LevelStudy {
		t.Errorf("level = %q", env.Level)
	}
	if env.Source != testSource || env.Target != testTarget {
		t.Errorf("peers = %+v / %+v", env.Source, env.Target)
	}
	if len(env.Tags) != len(StudyDefaults) {
		t.Fatalf("got %d tags, want %d", len(env.Tags), len(StudyDefaults))
	}
	for i, tv := range env.Tags {
		if string(tv.Tag) != StudyDefaults[i] || tv.Value != "" {
			t.Errorf("tag %d = %+v, want %s with empty value", i, tv, StudyDefaults[i])
		}
	}
}

func TestTranslate_Order(t *testing.T) {
	tr := NewTranslator(testSource, testTarget, Policy{})
	params := url.Values{
		"includefield":     {"StudyDescription,00100030", "PatientSex"},
		"StudyDate":        {"20240101-20241231"},
		"AccessionNumber":  {"A1"},
		"offset":           {"5"},
		"limit":            {"10"},
		"NotAKeyword":      {"x"},
		"StudyInstanceUID": {"1.2.3"},
	}

	env, err := tr.Translate(domain.LevelStudy, params, []string{"PatientID", "bogus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.TagValue{
		{Tag: domain.TagStudyDescription},
		{Tag: domain.TagPatientBirthDate},
		{Tag: domain.TagPatientSex},
		{Tag: domain.TagPatientID},
		{Tag: domain.TagAccessionNumber, Value: "A1"},
		{Tag: domain.TagStudyDate, Value: "20240101-20241231"},
		{Tag: domain.TagStudyInstanceUID, Value: "1.2.3"},
	}
	got := tags(env)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tag %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTranslate_LiteralTagPredicate(t *testing.T) {
	tr := NewTranslator(testSource, testTarget, Policy{})
	env, err := tr.Translate(domain.LevelStudy, url.Values{"00100020": {"P1"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(env.Tags) != 1 || env.Tags[0] != (domain.TagValue{Tag: domain.TagPatientID, Value: "P1"}) {
		t.Errorf("tags = %v", env.Tags)
	}
}

func TestTranslate_DuplicatesKept(t *testing.T) {
	tr := NewTranslator(testSource, testTarget, Policy{})
	env, _ := tr.Translate(domain.LevelImage, url.Values{"includefield": {"SOPClassUID"}}, InstanceDefaults)
	if len(env.Tags) != 3 || env.Tags[0].Tag != domain.TagSOPClassUID || env.Tags[1].Tag != domain.TagSOPClassUID {
		t.Errorf("tags = %v", env.Tags)
	}
}

func TestTranslate_PatientNamePolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		value    string
		want     string
		rejected bool
	}{
		{"below minimum", Policy{MinPatientNameChars: 3}, "DO", "", true},
		{"at minimum", Policy{MinPatientNameChars: 3}, "DOE", "DOE", false},
		{"wildcard appended", Policy{MinPatientNameChars: 3, AppendWildcard: true}, "DOE", "DOE*", false},
		{"no minimum", Policy{}, "", "", false},
		{"multibyte below minimum", Policy{MinPatientNameChars: 3}, "李明", "", true},
		{"multibyte at minimum", Policy{MinPatientNameChars: 3, AppendWildcard: true}, "王小明", "王小明*", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTranslator(testSource, testTarget, tc.policy)
			env, err := tr.Translate(domain.LevelStudy, url.Values{"PatientName": {tc.value}}, nil)
			if tc.rejected {
				if !errors.Is(err, domain.ErrQueryRejected) {
					t.Fatalf("expected ErrQueryRejected, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(env.Tags) != 1 || env.Tags[0].Value != tc.want {
				t.Errorf("tags = %v, want value %q", env.Tags, tc.want)
			}
		})
	}
}
