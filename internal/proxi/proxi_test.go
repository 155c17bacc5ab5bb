package proxi

import (
	"encoding/json"
	"testing"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/spectrum"
	"github.com/kwehner/mzusi/internal/usi"
)

func testUSI(t *testing.T) usi.USI {
	t.Helper()
	u, err := usi.Parse("mzspec:PXD000001:run1:scan:100")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return u
}

func TestAssemble_Readable(t *testing.T) {
	s := &spectrum.RawSpectrum{
		MZ:         []float64{100.1, 200.2, 300.3},
		Intensity:  []float64{10, 20, 30},
		Centroided: true,
		Precursor:  &spectrum.Precursor{MZ: 445.12, Charge: 2},
		Scan: spectrum.ScanInfo{
			MSLevel:          2,
			RetentionTimeSec: 120.5,
			TotalIonCurrent:  60,
			Polarity:         spectrum.PolarityPositive,
		},
	}

	rec, err := Assemble(testUSI(t), s, StatusReadable)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if rec.USI != "mzspec:PXD000001:run1:scan:100" {
		t.Errorf("USI = %q", rec.USI)
	}
	if rec.Status != StatusReadable {
		t.Errorf("Status = %q", rec.Status)
	}
	if len(rec.MZs) != 3 || len(rec.Intensities) != 3 {
		t.Fatalf("peak arrays = %d/%d, want 3/3", len(rec.MZs), len(rec.Intensities))
	}

	attrs := map[string]string{}
	for _, a := range rec.Attributes {
		attrs[a.Accession] = a.Value
	}
	if attrs["MS:1000511"] != "2" {
		t.Errorf("ms level = %q, want 2", attrs["MS:1000511"])
	}
	if attrs["MS:1000016"] != "120.5" {
		t.Errorf("scan start time = %q", attrs["MS:1000016"])
	}
	if attrs["MS:1000744"] != "445.12" {
		t.Errorf("selected ion m/z = %q", attrs["MS:1000744"])
	}
	if attrs["MS:1000041"] != "2" {
		t.Errorf("charge state = %q", attrs["MS:1000041"])
	}
	if attrs["MS:1008040"] != "3" {
		t.Errorf("number of peaks = %q, want 3", attrs["MS:1008040"])
	}
	if _, ok := attrs["MS:1000130"]; !ok {
		t.Error("positive scan attribute missing")
	}
}

func TestAssemble_MergedCarriesNoMobilityField(t *testing.T) {
	m := spectrum.MergeMobility(&spectrum.RawSpectrum{
		MZ:         []float64{500, 500},
		Intensity:  []float64{40, 60},
		Mobility:   []float64{0.9, 1.0},
		Centroided: true,
		Scan:       spectrum.ScanInfo{MSLevel: 1, RetentionTimeSec: -1},
	}, 20)

	rec, err := Assemble(testUSI(t), m, StatusReadable)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for key := range decoded {
		if key == "mobilities" || key == "mobility" {
			t.Errorf("record must not carry a mobility field, found %q", key)
		}
	}

	// but the frame-level mean 1/K0 lands in the attributes
	found := false
	for _, a := range rec.Attributes {
		if a.Accession == "MS:1002815" {
			found = true
		}
	}
	if !found {
		t.Error("inverse reduced ion mobility attribute missing for merged frame")
	}
}

func TestAssemble_NilArraysMarshalAsEmpty(t *testing.T) {
	// Metadata-only fetches leave the peak arrays nil; the record must
	// still serialize them as [] so clients see arrays, not null.
	s := &spectrum.RawSpectrum{
		Centroided: true,
		Scan:       spectrum.ScanInfo{MSLevel: 1, RetentionTimeSec: -1},
	}
	rec, err := Assemble(testUSI(t), s, StatusPeakUnavailable)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"mzs", "intensities"} {
		v, ok := decoded[key]
		if !ok {
			t.Fatalf("%q missing from record", key)
		}
		if _, isArray := v.([]any); !isArray {
			t.Errorf("%q = %v, want an empty array", key, v)
		}
	}
}

func TestAssemble_LengthMismatch(t *testing.T) {
	s := &brokenPeaks{}
	_, err := Assemble(testUSI(t), s, StatusReadable)
	if !errors.Is(err, errors.ErrIncompleteSpectrum) {
		t.Errorf("err = %v, want INCOMPLETE_SPECTRUM", err)
	}
}

func TestAssemble_UnknownMetadataOmitted(t *testing.T) {
	s := &spectrum.RawSpectrum{
		MZ:         []float64{1},
		Intensity:  []float64{1},
		Centroided: true,
		Scan:       spectrum.ScanInfo{RetentionTimeSec: -1},
	}
	rec, err := Assemble(testUSI(t), s, StatusPeakUnavailable)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	for _, a := range rec.Attributes {
		if a.Accession == "MS:1000016" {
			t.Error("unknown retention time must not be emitted")
		}
		if a.Accession == "MS:1000511" {
			t.Error("unknown ms level must not be emitted")
		}
	}
}

// brokenPeaks violates the length invariant on purpose.
type brokenPeaks struct{}

func (b *brokenPeaks) Arrays() ([]float64, []float64)           { return []float64{1, 2}, []float64{1} }
func (b *brokenPeaks) Info() spectrum.ScanInfo                  { return spectrum.ScanInfo{} }
func (b *brokenPeaks) PrecursorInfo() *spectrum.Precursor       { return nil }
func (b *brokenPeaks) IsCentroided() bool                       { return true }
