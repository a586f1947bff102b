package query

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/dicomgw/internal/dictionary"
	"github.com/kailas-cloud/dicomgw/internal/domain"
)

// Reserved query parameters that never become search predicates.
const (
	ParamIncludeField = "includefield"
	ParamOffset       = "offset"
	ParamLimit        = "limit"
)

// Default return keys per level.
var (
	StudyDefaults = []string{
		"00080005", // SpecificCharacterSet
		"00080020", // StudyDate
		"00080030", // StudyTime
		"00080050", // AccessionNumber
		"00080054", // RetrieveAETitle
		"00080056", // InstanceAvailability
		"00080061", // ModalitiesInStudy
		"00080090", // ReferringPhysicianName
		"00081190", // RetrieveURL
		"00100010", // PatientName
		"00100020", // PatientID
		"00100030", // PatientBirthDate
		"00100040", // PatientSex
		"0020000D", // StudyInstanceUID
		"00200010", // StudyID
		"00201206", // NumberOfStudyRelatedSeries
		"00201208", // NumberOfStudyRelatedInstances
	}
	SeriesDefaults = []string{
		"00080005", // SpecificCharacterSet
		"00080054", // RetrieveAETitle
		"00080056", // InstanceAvailability
		"00080060", // Modality
		"0008103E", // SeriesDescription
		"00081190", // RetrieveURL
		"0020000E", // SeriesInstanceUID
		"00200011", // SeriesNumber
		"00201209", // NumberOfSeriesRelatedInstances
	}
	InstanceDefaults = []string{"SOPClassUID", "SOPInstanceUID"}
)

// Policy holds per-field translation rules.
type Policy struct {
	// MinPatientNameChars rejects shorter PatientName predicates.
	MinPatientNameChars int
	// AppendWildcard turns PatientName predicates into prefix matches.
	AppendWildcard bool
}

// Translator builds C-FIND envelopes from REST query parameters.
type Translator struct {
	source domain.Peer
	target domain.Peer
	policy Policy
}

// NewTranslator creates a translator addressing target as source.
func NewTranslator(source, target domain.Peer, p Policy) *Translator {
	return &Translator{source: source, target: target, policy: p}
}

// Translate builds the envelope for one request. Tag order is includes,
// then defaults, then predicates sorted by parameter name. Names that are
// neither dictionary keywords nor 8-hex tag ids are dropped.
func (t *Translator) Translate(level domain.Level, params url.Values, defaults []string) (domain.Envelope, error) {
	env := domain.Envelope{
		Level:  level,
		Source: t.source,
		Target: t.target,
	}

	for _, name := range append(includeFields(params), defaults...) {
		if id, ok := dictionary.Normalize(name); ok {
			env.Tags = append(env.Tags, domain.TagValue{Tag: id})
		}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		switch name {
		case ParamIncludeField, ParamOffset, ParamLimit:
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		id, ok := dictionary.Normalize(name)
		if !ok {
			continue
		}
		value := params.Get(name)
		if id == domain.TagPatientName {
			if utf8.RuneCountInString(value) < t.policy.MinPatientNameChars {
				return domain.Envelope{}, fmt.Errorf("%w: PatientName %q shorter than %d characters",
					domain.ErrQueryRejected, value, t.policy.MinPatientNameChars)
			}
			if t.policy.AppendWildcard {
				value += "*"
			}
		}
		env.Tags = append(env.Tags, domain.TagValue{Tag: id, Value: value})
	}

	return env, nil
}

func includeFields(params url.Values) []string {
	var out []string
	for _, v := range params[ParamIncludeField] {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}
