package dicomobj

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/dicomgw/internal/dicomobj/dicomobjtest"
	"github.com/kailas-cloud/dicomgw/internal/domain"
)

func writeCT(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "1.2", "1.2.3.1.dcm")
	if err := dicomobjtest.Write(path, dicomobjtest.CT("1.2", "1.2.3", "1.2.3.1")); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestReadAttributes(t *testing.T) {
	obj, err := ReadAttributes(writeCT(t))
	if err != nil {
		t.Fatalf("ReadAttributes: %v", err)
	}

	if s, ok := obj.String(domain.TagModality); !ok || s != "CT" {
		t.Errorf("Modality = %q, %v", s, ok)
	}
	if n, ok := obj.Int(domain.TagRows); !ok || n != 4 {
		t.Errorf("Rows = %d, %v", n, ok)
	}
	if n, ok := obj.Int(domain.TagBitsStored); !ok || n != 12 {
		t.Errorf("BitsStored = %d, %v", n, ok)
	}
	spacing, ok := obj.Floats(domain.TagPixelSpacing)
	if !ok || len(spacing) != 2 || spacing[0] != 0.5 {
		t.Errorf("PixelSpacing = %v, %v", spacing, ok)
	}
	wc, ok := obj.Floats(domain.TagWindowCenter)
	if !ok || wc[0] != 50 {
		t.Errorf("WindowCenter = %v, %v", wc, ok)
	}
	if f, ok := obj.Floats(domain.TagRescaleIntercept); !ok || f[0] != -1024 {
		t.Errorf("RescaleIntercept = %v, %v", f, ok)
	}
	if _, ok := obj.String(domain.TagPatientName); ok {
		t.Error("absent element reported as present")
	}
}

func TestReadAttributes_NotDICOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dcm")
	_ = os.WriteFile(path, []byte("not a dicom file"), 0o644)

	_, err := ReadAttributes(path)
	if !errors.Is(err, domain.ErrParseFailure) {
		t.Errorf("expected ErrParseFailure, got %v", err)
	}
}

func TestPixelData_Native(t *testing.T) {
	data, err := PixelData(writeCT(t))
	if err != nil {
		t.Fatalf("PixelData: %v", err)
	}
	if len(data) != 4*4*2 {
		t.Fatalf("len = %d, want 32", len(data))
	}
	want := binary.LittleEndian.AppendUint16(nil, 0x0102)
	if !bytes.Equal(data[:2], want) {
		t.Errorf("first pixel = %x, want %x", data[:2], want)
	}
}

func TestPixelData_EncapsulatedFirstFragment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.2", "1.2.3.1.dcm")
	first := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	second := []byte{0xFF, 0xD9, 0x00, 0x00}
	fx := dicomobjtest.CT("1.2", "1.2.3", "1.2.3.1")
	if err := dicomobjtest.WriteEncapsulated(path, fx, first, second); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	data, err := PixelData(path)
	if err != nil {
		t.Fatalf("PixelData: %v", err)
	}
	if !bytes.Equal(data, first) {
		t.Errorf("PixelData = %x, want first fragment %x", data, first)
	}

	obj, err := ReadAttributes(path)
	if err != nil {
		t.Fatalf("ReadAttributes: %v", err)
	}
	if uid, _ := obj.String(domain.TagSOPInstanceUID); uid != "1.2.3.1" {
		t.Errorf("SOPInstanceUID = %q", uid)
	}
}

func TestFloats_NonFinite(t *testing.T) {
	fx := dicomobjtest.CT("1.2", "1.2.3", "1.2.3.1")
	fx.WindowCenter = []string{"NaN"}
	fx.WindowWidth = []string{"350", "Inf"}
	fx.PixelSpacing = []string{"-Infinity", "0.5"}
	path := filepath.Join(t.TempDir(), "1.2.3.1.dcm")
	if err := dicomobjtest.Write(path, fx); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	obj, err := ReadAttributes(path)
	if err != nil {
		t.Fatalf("ReadAttributes: %v", err)
	}

	for _, id := range []domain.TagID{domain.TagWindowCenter, domain.TagWindowWidth, domain.TagPixelSpacing} {
		if v, ok := obj.Floats(id); ok {
			t.Errorf("%s = %v, want lookup to fail", id, v)
		}
	}
	if v, ok := obj.Floats(domain.TagRescaleIntercept); !ok || v[0] != -1024 {
		t.Errorf("RescaleIntercept = %v, %v", v, ok)
	}
}

func TestSOPInstanceUID(t *testing.T) {
	uid, err := SOPInstanceUID(writeCT(t))
	if err != nil || uid != "1.2.3.1" {
		t.Errorf("SOPInstanceUID = %q, %v", uid, err)
	}
}
