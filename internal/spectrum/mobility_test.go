package spectrum

import (
	"sort"
	"testing"
)

// frameFixture mimics a TIMS frame: the same ion observed at several
// mobility positions, plus an isolated ion.
func frameFixture() *RawSpectrum {
	return &RawSpectrum{
		MZ:         []float64{500.0000, 500.0010, 500.0020, 623.3, 623.3, 810.5},
		Intensity:  []float64{100, 300, 100, 40, 60, 25},
		Mobility:   []float64{0.85, 0.86, 0.87, 1.10, 1.11, 1.30},
		Centroided: true,
		Scan:       ScanInfo{MSLevel: 1},
	}
}

func TestMergeMobility_CollapsesWithinTolerance(t *testing.T) {
	out := MergeMobility(frameFixture(), 20.0)
	if len(out.MZ) != 3 {
		t.Fatalf("merged to %d peaks, want 3", len(out.MZ))
	}
	// 500 group: intensity summed
	if out.Intensity[0] != 500 {
		t.Errorf("group intensity = %v, want 500", out.Intensity[0])
	}
	// weighted mean mz of the 500 group
	want := (500.0000*100 + 500.0010*300 + 500.0020*100) / 500
	if diff := out.MZ[0] - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("group mz = %v, want %v", out.MZ[0], want)
	}
}

func TestMergeMobility_EqualMZMergesNotDuplicates(t *testing.T) {
	out := MergeMobility(frameFixture(), 20.0)
	// the two 623.3 entries collapse to one
	count := 0
	for _, mz := range out.MZ {
		if mz == 623.3 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("623.3 appears %d times, want 1", count)
	}
	if out.Intensity[1] != 100 {
		t.Errorf("623.3 intensity = %v, want 100", out.Intensity[1])
	}
}

func TestMergeMobility_NeverIncreasesPointCount(t *testing.T) {
	in := frameFixture()
	out := MergeMobility(in, 20.0)
	if len(out.MZ) > len(in.MZ) {
		t.Errorf("point count grew: %d > %d", len(out.MZ), len(in.MZ))
	}
}

func TestMergeMobility_NoOutputsWithinTolerance(t *testing.T) {
	// Chain of points each 15 ppm apart; pairwise merges leave centers
	// that must be re-checked against each other.
	mz := []float64{600}
	for i := 0; i < 5; i++ {
		mz = append(mz, mz[len(mz)-1]*(1+15e-6))
	}
	in := &RawSpectrum{
		MZ:         mz,
		Intensity:  []float64{10, 10, 10, 10, 10, 10},
		Mobility:   []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.9},
		Centroided: true,
	}
	out := MergeMobility(in, 20.0)
	if !sort.Float64sAreSorted(out.MZ) {
		t.Fatal("merged mz must stay sorted")
	}
	for i := 1; i < len(out.MZ); i++ {
		if withinPPM(out.MZ[i-1], out.MZ[i], 20.0) {
			t.Errorf("outputs %v and %v within tolerance", out.MZ[i-1], out.MZ[i])
		}
	}
}

func TestMergeMobility_DropsMobilityKeepsMeanK0(t *testing.T) {
	out := MergeMobility(frameFixture(), 20.0)
	if !out.IsCentroided() {
		t.Error("merged spectrum must report centroided")
	}
	if out.Scan.MeanInverseK0 <= 0 {
		t.Error("mean 1/K0 should be recorded as scan metadata")
	}
	// weighted mean over all six points
	in := frameFixture()
	var w, tot float64
	for i := range in.Mobility {
		w += in.Mobility[i] * in.Intensity[i]
		tot += in.Intensity[i]
	}
	want := w / tot
	if diff := out.Scan.MeanInverseK0 - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("MeanInverseK0 = %v, want %v", out.Scan.MeanInverseK0, want)
	}
}

func TestMergeMobility_IsolatedPeakUntouched(t *testing.T) {
	out := MergeMobility(frameFixture(), 20.0)
	last := out.MZ[len(out.MZ)-1]
	if last != 810.5 {
		t.Errorf("isolated peak mz = %v, want 810.5", last)
	}
	if out.Intensity[len(out.Intensity)-1] != 25 {
		t.Errorf("isolated peak intensity = %v, want 25", out.Intensity[len(out.Intensity)-1])
	}
}
