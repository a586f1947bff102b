package domain

// TagID is a DICOM tag as 8 upper-case hex digits, e.g. "0020000D".
type TagID string

// Well-known tags used by the gateway core.
const (
	TagSOPClassUID                TagID = "00080016"
	TagSOPInstanceUID             TagID = "00080018"
	TagStudyDate                  TagID = "00080020"
	TagStudyTime                  TagID = "00080030"
	TagAccessionNumber            TagID = "00080050"
	TagModality                   TagID = "00080060"
	TagModalitiesInStudy          TagID = "00080061"
	TagStudyDescription           TagID = "00081030"
	TagSeriesDescription          TagID = "0008103E"
	TagPatientName                TagID = "00100010"
	TagPatientID                  TagID = "00100020"
	TagPatientBirthDate           TagID = "00100030"
	TagPatientSex                 TagID = "00100040"
	TagStudyInstanceUID           TagID = "0020000D"
	TagSeriesInstanceUID          TagID = "0020000E"
	TagStudyID                    TagID = "00200010"
	TagSeriesNumber               TagID = "00200011"
	TagInstanceNumber             TagID = "00200013"
	TagImagePositionPatient       TagID = "00200032"
	TagImageOrientationPatient    TagID = "00200037"
	TagNumberOfStudyRelatedSeries TagID = "00201206"
	TagNumberOfStudyInstances     TagID = "00201208"
	TagNumberOfSeriesInstances    TagID = "00201209"
	TagSamplesPerPixel            TagID = "00280002"
	TagPhotometricInterpretation  TagID = "00280004"
	TagRows                       TagID = "00280010"
	TagColumns                    TagID = "00280011"
	TagPixelSpacing               TagID = "00280030"
	TagBitsAllocated              TagID = "00280100"
	TagBitsStored                 TagID = "00280101"
	TagHighBit                    TagID = "00280102"
	TagPixelRepresentation        TagID = "00280103"
	TagWindowCenter               TagID = "00281050"
	TagWindowWidth                TagID = "00281051"
	TagRescaleIntercept           TagID = "00281052"
	TagRescaleSlope               TagID = "00281053"
)

// Group returns the DICOM "gggg,eeee" notation used by command-line toolkits.
func (t TagID) Group() string {
	if len(t) != 8 {
		return string(t)
	}
	return string(t[:4]) + "," + string(t[4:])
}

// Peer identifies a DIMSE application entity.
type Peer struct {
	AET  string
	Host string
	Port int
}

// TagValue is a single query key. An empty Value requests the attribute as a return key.
type TagValue struct {
	Tag   TagID
	Value string
}

// Envelope is a C-FIND request: level, peers and the ordered query keys.
// Built per request; must not be modified after being handed to a Finder.
type Envelope struct {
	Level  Level
	Source Peer
	Target Peer
	Tags   []TagValue
}

// ReturnKeys lists every tag of the envelope in order, without duplicates.
// The archive echoes matching keys as well as return keys.
func (e *Envelope) ReturnKeys() []TagID {
	seen := make(map[TagID]struct{}, len(e.Tags))
	out := make([]TagID, 0, len(e.Tags))
	for _, tv := range e.Tags {
		if _, ok := seen[tv.Tag]; ok {
			continue
		}
		seen[tv.Tag] = struct{}{}
		out = append(out, tv.Tag)
	}
	return out
}
