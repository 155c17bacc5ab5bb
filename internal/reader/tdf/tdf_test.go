package tdf

import (
	"context"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/usi"
	_ "modernc.org/sqlite"
)

type binPeak struct {
	tof       uint32
	intensity uint32
}

// frameBlob builds one uncompressed frame record: length, numScans, then
// per-scan peak lists.
func frameBlob(scans [][]binPeak) []byte {
	size := 8
	for _, s := range scans {
		size += 4 + 8*len(s)
	}
	blob := make([]byte, 0, size)
	blob = binary.LittleEndian.AppendUint32(blob, uint32(size))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(scans)))
	for _, s := range scans {
		blob = binary.LittleEndian.AppendUint32(blob, uint32(len(s)))
		for _, p := range s {
			blob = binary.LittleEndian.AppendUint32(blob, p.tof)
			blob = binary.LittleEndian.AppendUint32(blob, p.intensity)
		}
	}
	return blob
}

type frameDef struct {
	id       int64
	timeSec  float64
	polarity string
	msmsType int
	scans    [][]binPeak
}

// writeRun materializes a run directory with analysis.tdf and
// analysis.tdf_bin. Calibration maps tof index i to m/z 100+i and spans
// 1/K0 0.6..1.6.
func writeRun(t *testing.T, compression int, frames []frameDef) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "run.d")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "analysis.tdf"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE GlobalMetadata (Key TEXT PRIMARY KEY, Value TEXT)`,
		`CREATE TABLE Frames (
			Id INTEGER PRIMARY KEY, Time REAL, Polarity TEXT, MsMsType INTEGER,
			TimsId INTEGER, NumScans INTEGER, NumPeaks INTEGER, SummedIntensities REAL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatal(err)
		}
	}

	meta := map[string]any{
		"MzAcqRangeLower":        100.0,
		"MzAcqRangeUpper":        1100.0,
		"OneOverK0AcqRangeLower": 0.6,
		"OneOverK0AcqRangeUpper": 1.6,
		"DigitizerNumSamples":    1001,
		"TimsCompressionType":    compression,
	}
	for k, v := range meta {
		if _, err := db.Exec(`INSERT INTO GlobalMetadata (Key, Value) VALUES (?, ?)`, k, v); err != nil {
			t.Fatal(err)
		}
	}

	var bin []byte
	for _, f := range frames {
		blob := frameBlob(f.scans)
		numPeaks := 0
		summed := 0.0
		for _, s := range f.scans {
			numPeaks += len(s)
			for _, p := range s {
				summed += float64(p.intensity)
			}
		}
		_, err := db.Exec(
			`INSERT INTO Frames (Id, Time, Polarity, MsMsType, TimsId, NumScans, NumPeaks, SummedIntensities)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.id, f.timeSec, f.polarity, f.msmsType, len(bin), len(f.scans), numPeaks, summed)
		if err != nil {
			t.Fatal(err)
		}
		bin = append(bin, blob...)
	}

	if err := os.WriteFile(filepath.Join(dir, "analysis.tdf_bin"), bin, 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func defaultFrames() []frameDef {
	return []frameDef{
		{
			id: 1, timeSec: 12.5, polarity: "+", msmsType: 0,
			// Scan 0 (1/K0 1.6) holds m/z 200 and 500; scan 1 (1/K0 0.6)
			// holds m/z 350, so concatenation is unsorted.
			scans: [][]binPeak{
				{{tof: 100, intensity: 10}, {tof: 400, intensity: 20}},
				{{tof: 250, intensity: 5}},
			},
		},
		{
			id: 2, timeSec: 13.0, polarity: "+", msmsType: 8,
			scans: [][]binPeak{{{tof: 900, intensity: 50}}},
		},
	}
}

func mustUSI(t *testing.T, s string) usi.USI {
	t.Helper()
	ident, err := usi.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return ident
}

func openRun(t *testing.T, opts Options, dir string) *Run {
	t.Helper()
	run, err := New(opts).OpenRun(context.Background(), dir)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}
	t.Cleanup(func() { run.Close() })
	return run
}

func TestFetchByOrdinal(t *testing.T) {
	run := openRun(t, Options{}, writeRun(t, 0, defaultFrames()))
	if run.NumFrames() != 2 {
		t.Fatalf("NumFrames = %d, want 2", run.NumFrames())
	}

	s, err := run.FetchSpectrum(context.Background(), mustUSI(t, "mzspec:PXD000001:run:index:0"))
	if err != nil {
		t.Fatalf("FetchSpectrum: %v", err)
	}
	wantMZ := []float64{200, 350, 500}
	wantInt := []float64{10, 5, 20}
	wantMob := []float64{1.6, 0.6, 1.6}
	if len(s.MZ) != 3 {
		t.Fatalf("peaks = %d, want 3", len(s.MZ))
	}
	for i := range wantMZ {
		if s.MZ[i] != wantMZ[i] || s.Intensity[i] != wantInt[i] || s.Mobility[i] != wantMob[i] {
			t.Errorf("peak %d = (%g, %g, %g), want (%g, %g, %g)",
				i, s.MZ[i], s.Intensity[i], s.Mobility[i], wantMZ[i], wantInt[i], wantMob[i])
		}
	}
	if !s.Centroided || !s.HasMobility() {
		t.Errorf("Centroided=%v HasMobility=%v", s.Centroided, s.HasMobility())
	}
	if s.Scan.MSLevel != 1 || s.Scan.RetentionTimeSec != 12.5 || s.Scan.TotalIonCurrent != 35 {
		t.Errorf("scan info = %+v", s.Scan)
	}
	if s.Scan.NativeID != "frame=1" {
		t.Errorf("NativeID = %q", s.Scan.NativeID)
	}
}

func TestFetchByFrameID(t *testing.T) {
	run := openRun(t, Options{}, writeRun(t, 0, defaultFrames()))
	s, err := run.FetchSpectrum(context.Background(), mustUSI(t, "mzspec:PXD000001:run:scan:2"))
	if err != nil {
		t.Fatalf("FetchSpectrum: %v", err)
	}
	if s.Scan.MSLevel != 2 {
		t.Errorf("MSLevel = %d, want 2", s.Scan.MSLevel)
	}
	if len(s.MZ) != 1 || s.MZ[0] != 1000 || s.Intensity[0] != 50 {
		t.Errorf("peaks = %v / %v", s.MZ, s.Intensity)
	}
	if s.Mobility[0] != 1.6 {
		t.Errorf("Mobility[0] = %g, want 1.6", s.Mobility[0])
	}
}

func TestFetchOutOfRange(t *testing.T) {
	run := openRun(t, Options{}, writeRun(t, 0, defaultFrames()))
	cases := []string{
		"mzspec:PXD000001:run:index:5",
		"mzspec:PXD000001:run:scan:99",
	}
	for _, c := range cases {
		if _, err := run.FetchSpectrum(context.Background(), mustUSI(t, c)); !errors.Is(err, errors.ErrIndexOutOfRange) {
			t.Errorf("%s: err = %v, want INDEX_OUT_OF_RANGE", c, err)
		}
	}
}

func TestFetchNativeIDUnsupported(t *testing.T) {
	run := openRun(t, Options{}, writeRun(t, 0, defaultFrames()))
	_, err := run.FetchSpectrum(context.Background(), mustUSI(t, "mzspec:PXD000001:run:nativeId:frame=1"))
	if !errors.Is(err, errors.ErrIndexTypeUnsupported) {
		t.Fatalf("err = %v, want INDEX_TYPE_UNSUPPORTED", err)
	}
}

func TestMetadataOnly(t *testing.T) {
	dir := writeRun(t, 0, defaultFrames())
	// The bin file must not be needed at all in this mode.
	if err := os.Remove(filepath.Join(dir, "analysis.tdf_bin")); err != nil {
		t.Fatal(err)
	}
	run := openRun(t, Options{MetadataOnly: true}, dir)
	s, err := run.FetchSpectrum(context.Background(), mustUSI(t, "mzspec:PXD000001:run:index:0"))
	if err != nil {
		t.Fatalf("FetchSpectrum: %v", err)
	}
	if len(s.MZ) != 0 || len(s.Mobility) != 0 {
		t.Errorf("metadata-only spectrum carries peaks: %+v", s)
	}
	if s.Scan.RetentionTimeSec != 12.5 || s.Scan.MSLevel != 1 {
		t.Errorf("scan info = %+v", s.Scan)
	}
}

func TestCompressedUnavailable(t *testing.T) {
	dir := writeRun(t, 2, defaultFrames())
	_, err := New(Options{}).OpenRun(context.Background(), dir)
	if !errors.Is(err, errors.ErrBackendUnavailable) {
		t.Fatalf("OpenRun = %v, want BACKEND_UNAVAILABLE", err)
	}
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := New(Options{}).OpenRun(context.Background(), filepath.Join(t.TempDir(), "nope.d"))
	if !errors.Is(err, errors.ErrFormatProbe) {
		t.Fatalf("OpenRun = %v, want FORMAT_PROBE", err)
	}
}
