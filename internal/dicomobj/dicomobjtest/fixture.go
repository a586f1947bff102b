// Package dicomobjtest writes small DICOM files for tests.
package dicomobjtest

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ctImageStorage         = "1.2.840.10008.5.1.4.1.1.2"
)

// Fixture describes one instance. Empty optional strings omit the element.
type Fixture struct {
	StudyUID  string
	SeriesUID string
	SOPUID    string
	Modality  string
	Rows      int
	Columns   int

	PixelSpacing            []string
	WindowCenter            []string
	WindowWidth             []string
	RescaleIntercept        string
	RescaleSlope            string
	ImageOrientationPatient []string
	ImagePositionPatient    []string

	// Fill is the value of every 16-bit pixel.
	Fill uint16
}

// Write stores the fixture at path, creating parent directories.
func Write(path string, fx Fixture) error {
	pixels := fx.Rows * fx.Columns
	nativeFrame := frame.NewNativeFrame[uint16](16, fx.Rows, fx.Columns, pixels, 1)
	for i := range nativeFrame.RawData {
		nativeFrame.RawData[i] = fx.Fill
	}
	elems := append(elements(fx), mustElement(tag.PixelData, dicom.PixelDataInfo{
		Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
	}))
	return writeDataset(path, elems)
}

// WriteEncapsulated stores the fixture with encapsulated PixelData holding
// the given fragments, one per item, after an empty basic offset table.
// The element is appended as raw bytes since it is the last in the dataset.
func WriteEncapsulated(path string, fx Fixture, fragments ...[]byte) error {
	if err := writeDataset(path, elements(fx)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.Write(EncapsulatedPixelData(fragments...))
	return err
}

// EncapsulatedPixelData encodes an explicit VR little endian PixelData
// element of undefined length: offset table item, fragment items and the
// sequence delimiter.
func EncapsulatedPixelData(fragments ...[]byte) []byte {
	le := binary.LittleEndian
	buf := le.AppendUint16(nil, 0x7FE0)
	buf = le.AppendUint16(buf, 0x0010)
	buf = append(buf, 'O', 'B', 0, 0)
	buf = le.AppendUint32(buf, 0xFFFFFFFF)

	item := func(data []byte) {
		buf = le.AppendUint16(buf, 0xFFFE)
		buf = le.AppendUint16(buf, 0xE000)
		buf = le.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	item(nil)
	for _, frag := range fragments {
		item(frag)
	}
	buf = le.AppendUint16(buf, 0xFFFE)
	buf = le.AppendUint16(buf, 0xE0DD)
	return le.AppendUint32(buf, 0)
}

func writeDataset(path string, elems []*dicom.Element) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return dicom.Write(f, dicom.Dataset{Elements: elems})
}

func elements(fx Fixture) []*dicom.Element {
	elems := []*dicom.Element{
		mustElement(tag.MediaStorageSOPClassUID, []string{ctImageStorage}),
		mustElement(tag.MediaStorageSOPInstanceUID, []string{fx.SOPUID}),
		mustElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustElement(tag.SOPClassUID, []string{ctImageStorage}),
		mustElement(tag.SOPInstanceUID, []string{fx.SOPUID}),
		mustElement(tag.StudyInstanceUID, []string{fx.StudyUID}),
		mustElement(tag.SeriesInstanceUID, []string{fx.SeriesUID}),
		mustElement(tag.Modality, []string{fx.Modality}),
		mustElement(tag.SamplesPerPixel, []int{1}),
		mustElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustElement(tag.Rows, []int{fx.Rows}),
		mustElement(tag.Columns, []int{fx.Columns}),
		mustElement(tag.BitsAllocated, []int{16}),
		mustElement(tag.BitsStored, []int{12}),
		mustElement(tag.HighBit, []int{11}),
		mustElement(tag.PixelRepresentation, []int{0}),
	}
	optional := []struct {
		t   tag.Tag
		val []string
	}{
		{tag.PixelSpacing, fx.PixelSpacing},
		{tag.WindowCenter, fx.WindowCenter},
		{tag.WindowWidth, fx.WindowWidth},
		{tag.RescaleIntercept, nonEmpty(fx.RescaleIntercept)},
		{tag.RescaleSlope, nonEmpty(fx.RescaleSlope)},
		{tag.ImageOrientationPatient, fx.ImageOrientationPatient},
		{tag.ImagePositionPatient, fx.ImagePositionPatient},
	}
	for _, o := range optional {
		if len(o.val) > 0 {
			elems = append(elems, mustElement(o.t, o.val))
		}
	}

	return elems
}

// CT returns a fully populated 4x4 CT fixture.
func CT(study, series, sop string) Fixture {
	return Fixture{
		StudyUID:                study,
		SeriesUID:               series,
		SOPUID:                  sop,
		Modality:                "CT",
		Rows:                    4,
		Columns:                 4,
		PixelSpacing:            []string{"0.5", "0.5"},
		WindowCenter:            []string{"50", "60"},
		WindowWidth:             []string{"350", "400"},
		RescaleIntercept:        "-1024",
		RescaleSlope:            "1",
		ImageOrientationPatient: []string{"1", "0", "0", "0", "1", "0"},
		ImagePositionPatient:    []string{"-100", "-100", "0"},
		Fill:                    0x0102,
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func mustElement(t tag.Tag, value any) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}
