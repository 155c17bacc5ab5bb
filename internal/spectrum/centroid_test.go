package spectrum

import (
	"sort"
	"testing"
)

// profileFixture is a three-peak profile trace with a zero baseline.
func profileFixture() *RawSpectrum {
	return &RawSpectrum{
		MZ: []float64{
			100.00, 100.01, 100.02, 100.03, 100.04,
			200.00, 200.01, 200.02,
			300.00, 300.01, 300.02, 300.03,
		},
		Intensity: []float64{
			0, 40, 100, 35, 0,
			10, 80, 12,
			0, 55, 60, 8,
		},
		Scan: ScanInfo{MSLevel: 1, RetentionTimeSec: 63.2},
	}
}

func TestCentroid_ReducesPointCount(t *testing.T) {
	in := profileFixture()
	out := Centroid(in, 1.0)
	if !out.Centroided {
		t.Error("output should be centroided")
	}
	if len(out.MZ) >= len(in.MZ) {
		t.Errorf("point count = %d, want strictly fewer than %d", len(out.MZ), len(in.MZ))
	}
	if len(out.MZ) != len(out.Intensity) {
		t.Fatalf("array lengths diverge: %d vs %d", len(out.MZ), len(out.Intensity))
	}
	if len(out.MZ) != 3 {
		t.Errorf("picked %d peaks, want 3", len(out.MZ))
	}
}

func TestCentroid_SortedUniqueMZ(t *testing.T) {
	out := Centroid(profileFixture(), 1.0)
	if !sort.Float64sAreSorted(out.MZ) {
		t.Error("mz array must stay sorted ascending")
	}
	for i := 1; i < len(out.MZ); i++ {
		if out.MZ[i] == out.MZ[i-1] {
			t.Errorf("duplicate mz %v at %d", out.MZ[i], i)
		}
	}
}

func TestCentroid_Idempotent(t *testing.T) {
	once := Centroid(profileFixture(), 1.0)
	twice := Centroid(once, 1.0)
	if twice != once {
		t.Error("centroiding a centroided spectrum must be a no-op")
	}
}

func TestCentroid_WeightedMZ(t *testing.T) {
	// Symmetric peak: centroid should land on the apex m/z.
	in := &RawSpectrum{
		MZ:        []float64{500.00, 500.01, 500.02},
		Intensity: []float64{50, 100, 50},
	}
	out := Centroid(in, 1.0)
	if len(out.MZ) != 1 {
		t.Fatalf("picked %d peaks, want 1", len(out.MZ))
	}
	if diff := out.MZ[0] - 500.01; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("centroid mz = %v, want 500.01", out.MZ[0])
	}
	if out.Intensity[0] != 100 {
		t.Errorf("apex intensity = %v, want 100", out.Intensity[0])
	}
}

func TestCentroid_AsymmetricPullsTowardHeavyShoulder(t *testing.T) {
	in := &RawSpectrum{
		MZ:        []float64{500.00, 500.01, 500.02},
		Intensity: []float64{90, 100, 10},
	}
	out := Centroid(in, 1.0)
	if len(out.MZ) != 1 {
		t.Fatalf("picked %d peaks, want 1", len(out.MZ))
	}
	if out.MZ[0] >= 500.01 {
		t.Errorf("centroid mz = %v, want below apex 500.01", out.MZ[0])
	}
}

func TestMergeEqualPeaks(t *testing.T) {
	// Equal centroids that were not adjacent before sorting end up next
	// to each other after it; the merge pass must collapse the runs.
	mz := []float64{100, 200, 200, 200, 300, 300}
	intensity := []float64{10, 20, 30, 5, 40, 1}
	mz, intensity = mergeEqualPeaks(mz, intensity)

	wantMZ := []float64{100, 200, 300}
	wantInt := []float64{10, 55, 41}
	if len(mz) != len(wantMZ) {
		t.Fatalf("merged to %d peaks, want %d", len(mz), len(wantMZ))
	}
	for i := range wantMZ {
		if mz[i] != wantMZ[i] || intensity[i] != wantInt[i] {
			t.Errorf("peak %d = (%v, %v), want (%v, %v)", i, mz[i], intensity[i], wantMZ[i], wantInt[i])
		}
	}

	mz, intensity = mergeEqualPeaks(nil, nil)
	if len(mz) != 0 || len(intensity) != 0 {
		t.Error("empty input must stay empty")
	}
}

func TestCentroid_PreservesMetadata(t *testing.T) {
	in := profileFixture()
	in.Precursor = &Precursor{MZ: 445.12, Charge: 2}
	out := Centroid(in, 1.0)
	if out.Scan.RetentionTimeSec != 63.2 {
		t.Errorf("RetentionTimeSec = %v", out.Scan.RetentionTimeSec)
	}
	if out.Precursor == nil || out.Precursor.MZ != 445.12 {
		t.Error("precursor must carry through")
	}
}

func TestCentroid_EmptyInput(t *testing.T) {
	out := Centroid(&RawSpectrum{}, 1.0)
	if !out.Centroided {
		t.Error("empty output should still be marked centroided")
	}
	if len(out.MZ) != 0 {
		t.Errorf("len = %d, want 0", len(out.MZ))
	}
}

func TestCentroid_Deterministic(t *testing.T) {
	a := Centroid(profileFixture(), 1.0)
	b := Centroid(profileFixture(), 1.0)
	if len(a.MZ) != len(b.MZ) {
		t.Fatal("nondeterministic peak count")
	}
	for i := range a.MZ {
		if a.MZ[i] != b.MZ[i] || a.Intensity[i] != b.Intensity[i] {
			t.Fatalf("nondeterministic peak %d", i)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := &RawSpectrum{MZ: []float64{1, 2}, Intensity: []float64{5, 5}}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate failed on valid spectrum: %v", err)
	}

	bad := &RawSpectrum{MZ: []float64{1, 2}, Intensity: []float64{5}}
	if err := bad.Validate(); err == nil {
		t.Error("length mismatch must fail validation")
	}

	unsorted := &RawSpectrum{MZ: []float64{2, 1}, Intensity: []float64{5, 5}}
	if err := unsorted.Validate(); err == nil {
		t.Error("unsorted mz must fail validation")
	}

	badMob := &RawSpectrum{MZ: []float64{1, 2}, Intensity: []float64{5, 5}, Mobility: []float64{0.9}}
	if err := badMob.Validate(); err == nil {
		t.Error("mobility length mismatch must fail validation")
	}
}
