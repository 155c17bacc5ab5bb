// Package tdf reads ion-mobility frames from Bruker TDF run directories.
//
// A run is a directory holding analysis.tdf (a SQLite database with frame
// metadata and acquisition calibration) and analysis.tdf_bin (frame peak
// data addressed by Frames.TimsId byte offsets). Only the uncompressed
// frame layout is decoded here; compressed containers need the vendor
// library and report BACKEND_UNAVAILABLE.
package tdf

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/spectrum"
	"github.com/kwehner/mzusi/internal/usi"
	_ "modernc.org/sqlite"
)

const (
	// TimsCompressionType value for the raw scan layout.
	compressionNone = 0

	metadataFile = "analysis.tdf"
	binFile      = "analysis.tdf_bin"
)

// Options configures the backend.
type Options struct {
	MetadataOnly bool
}

// Reader is the TDF backend.
type Reader struct {
	opts Options
}

// New creates a TDF backend.
func New(opts Options) *Reader {
	return &Reader{opts: opts}
}

// Available reports backend readiness. The SQLite driver is pure Go, so the
// backend is always present.
func (r *Reader) Available() error { return nil }

// frame is one row of the Frames table.
type frame struct {
	ID                int64
	TimeSec           float64
	Polarity          string
	MsMsType          int
	TimsID            int64
	NumScans          int
	NumPeaks          int
	SummedIntensities float64
}

// calibration holds the acquisition ranges used to convert raw indices to
// physical values. Conversion is linear across the acquisition range.
type calibration struct {
	MzLower       float64
	MzUpper       float64
	OneOverK0Low  float64
	OneOverK0High float64
	DigitizerN    int
}

// Run is an opened TDF run directory.
type Run struct {
	opts   Options
	db     *sql.DB
	bin    *os.File
	frames []frame
	byID   map[int64]int
	calib  calibration
}

// OpenRun opens the run directory, verifies the container pair, and loads
// frame metadata.
func (r *Reader) OpenRun(ctx context.Context, path string) (*Run, error) {
	tdfPath := filepath.Join(path, metadataFile)
	if _, err := os.Stat(tdfPath); err != nil {
		return nil, errors.NewFormatProbe(path, err)
	}

	dsn := "file:" + tdfPath + "?mode=ro&immutable=1"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewFormatProbe(tdfPath, err)
	}

	run := &Run{opts: r.opts, db: db}
	if err := run.loadMetadata(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := run.loadFrames(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if !r.opts.MetadataOnly {
		bin, err := os.Open(filepath.Join(path, binFile))
		if err != nil {
			db.Close()
			return nil, errors.NewFormatProbe(path, err)
		}
		run.bin = bin
	}
	return run, nil
}

// Close releases the database and frame-data handles.
func (run *Run) Close() error {
	var first error
	if run.bin != nil {
		first = run.bin.Close()
		run.bin = nil
	}
	if run.db != nil {
		if err := run.db.Close(); err != nil && first == nil {
			first = err
		}
		run.db = nil
	}
	return first
}

// NumFrames reports how many frames the run holds.
func (run *Run) NumFrames() int { return len(run.frames) }

func (run *Run) loadMetadata(ctx context.Context) error {
	rows, err := run.db.QueryContext(ctx, "SELECT Key, Value FROM GlobalMetadata")
	if err != nil {
		return errors.NewFormatProbe(metadataFile, err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return errors.NewFormatProbe(metadataFile, err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return errors.NewFormatProbe(metadataFile, err)
	}

	if ct := meta["TimsCompressionType"]; ct != "" {
		n, err := strconv.Atoi(ct)
		if err != nil {
			return errors.NewFormatProbe(metadataFile, fmt.Errorf("TimsCompressionType %q: %w", ct, err))
		}
		if n != compressionNone {
			return errors.NewBackendUnavailable("bruker_tdf",
				fmt.Sprintf("compressed frame layout (TimsCompressionType=%d) needs the vendor library", n))
		}
	}

	var parseErr error
	get := func(key string) float64 {
		v, ok := meta[key]
		if !ok {
			parseErr = fmt.Errorf("GlobalMetadata missing %s", key)
			return 0
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErr = fmt.Errorf("GlobalMetadata %s=%q: %w", key, v, err)
		}
		return f
	}
	run.calib = calibration{
		MzLower:       get("MzAcqRangeLower"),
		MzUpper:       get("MzAcqRangeUpper"),
		OneOverK0Low:  get("OneOverK0AcqRangeLower"),
		OneOverK0High: get("OneOverK0AcqRangeUpper"),
		DigitizerN:    int(get("DigitizerNumSamples")),
	}
	if parseErr != nil {
		return errors.NewFormatProbe(metadataFile, parseErr)
	}
	if run.calib.DigitizerN < 2 {
		return errors.NewFormatProbe(metadataFile,
			fmt.Errorf("DigitizerNumSamples %d out of range", run.calib.DigitizerN))
	}
	return nil
}

func (run *Run) loadFrames(ctx context.Context) error {
	rows, err := run.db.QueryContext(ctx,
		`SELECT Id, Time, Polarity, MsMsType, TimsId, NumScans, NumPeaks, SummedIntensities
		 FROM Frames ORDER BY Id`)
	if err != nil {
		return errors.NewFormatProbe(metadataFile, err)
	}
	defer rows.Close()

	run.byID = make(map[int64]int)
	for rows.Next() {
		var f frame
		if err := rows.Scan(&f.ID, &f.TimeSec, &f.Polarity, &f.MsMsType,
			&f.TimsID, &f.NumScans, &f.NumPeaks, &f.SummedIntensities); err != nil {
			return errors.NewFormatProbe(metadataFile, err)
		}
		run.byID[f.ID] = len(run.frames)
		run.frames = append(run.frames, f)
	}
	if err := rows.Err(); err != nil {
		return errors.NewFormatProbe(metadataFile, err)
	}
	return nil
}

// FetchSpectrum fetches one frame as a spectrum with a parallel mobility
// array. Addressing: scan selects by frame id, index by 0-based frame list
// position; the container has no nativeId vocabulary.
func (run *Run) FetchSpectrum(ctx context.Context, ident usi.USI) (*spectrum.RawSpectrum, error) {
	var pos int
	switch ident.IndexType {
	case usi.IndexScan:
		id, err := strconv.ParseInt(ident.IndexValue, 10, 64)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("frame id %q is not numeric", ident.IndexValue))
		}
		p, ok := run.byID[id]
		if !ok {
			return nil, errors.NewIndexOutOfRange(string(ident.IndexType), int(id), len(run.frames))
		}
		pos = p
	case usi.IndexOrdinal:
		ord, _ := ident.Ordinal()
		if ord < 0 || ord >= len(run.frames) {
			return nil, errors.NewIndexOutOfRange(string(ident.IndexType), ord, len(run.frames))
		}
		pos = ord
	default:
		return nil, errors.NewIndexTypeUnsupported("bruker_tdf", string(ident.IndexType))
	}

	f := run.frames[pos]
	out := &spectrum.RawSpectrum{
		Centroided: true,
		Scan: spectrum.ScanInfo{
			NativeID:         fmt.Sprintf("frame=%d", f.ID),
			RetentionTimeSec: f.TimeSec,
			MSLevel:          msLevel(f.MsMsType),
			TotalIonCurrent:  f.SummedIntensities,
			Polarity:         polarity(f.Polarity),
		},
	}
	if run.opts.MetadataOnly {
		return out, nil
	}

	if err := run.readFrame(&f, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Uncompressed frame record in analysis.tdf_bin, little-endian, starting at
// Frames.TimsId:
//
//	uint32 length     record size in bytes including this header
//	uint32 numScans   must match Frames.NumScans
//	per scan:
//	  uint32 peakCount
//	  peakCount x (uint32 tofIndex, uint32 intensity)
func (run *Run) readFrame(f *frame, out *spectrum.RawSpectrum) error {
	var header [8]byte
	if _, err := run.bin.ReadAt(header[:], f.TimsID); err != nil {
		return errors.NewFormatProbe(binFile, err)
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	numScans := int(binary.LittleEndian.Uint32(header[4:8]))
	if length < 8 || numScans != f.NumScans {
		return errors.NewFormatProbe(binFile,
			fmt.Errorf("frame %d: header length=%d scans=%d, expected %d scans", f.ID, length, numScans, f.NumScans))
	}

	body := make([]byte, length-8)
	if _, err := run.bin.ReadAt(body, f.TimsID+8); err != nil {
		return errors.NewFormatProbe(binFile, err)
	}

	mzs := make([]float64, 0, f.NumPeaks)
	intensities := make([]float64, 0, f.NumPeaks)
	mobilities := make([]float64, 0, f.NumPeaks)

	off := 0
	for scan := 0; scan < numScans; scan++ {
		if off+4 > len(body) {
			return truncated(f.ID)
		}
		count := int(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		if off+8*count > len(body) {
			return truncated(f.ID)
		}
		k0 := run.calib.oneOverK0(scan, numScans)
		for p := 0; p < count; p++ {
			tof := binary.LittleEndian.Uint32(body[off:])
			intensity := binary.LittleEndian.Uint32(body[off+4:])
			off += 8
			mzs = append(mzs, run.calib.mz(tof))
			intensities = append(intensities, float64(intensity))
			mobilities = append(mobilities, k0)
		}
	}

	sortByMz(mzs, intensities, mobilities)
	out.MZ, out.Intensity, out.Mobility = mzs, intensities, mobilities
	return nil
}

func truncated(id int64) error {
	return errors.NewFormatProbe(binFile, fmt.Errorf("frame %d: truncated scan data", id))
}

// mz converts a TOF digitizer index by linear interpolation over the
// acquisition m/z range.
func (c *calibration) mz(tof uint32) float64 {
	frac := float64(tof) / float64(c.DigitizerN-1)
	return c.MzLower + frac*(c.MzUpper-c.MzLower)
}

// oneOverK0 converts a scan number to inverse reduced mobility. Scan 0 is
// acquired at the high end of the 1/K0 range. Interpolating up from the
// low anchor keeps both range endpoints exact.
func (c *calibration) oneOverK0(scan, numScans int) float64 {
	if numScans < 2 {
		return c.OneOverK0High
	}
	frac := float64(numScans-1-scan) / float64(numScans-1)
	return c.OneOverK0Low + frac*(c.OneOverK0High-c.OneOverK0Low)
}

func msLevel(msmsType int) int {
	if msmsType == 0 {
		return 1
	}
	return 2
}

func polarity(p string) string {
	switch p {
	case "+":
		return spectrum.PolarityPositive
	case "-":
		return spectrum.PolarityNegative
	default:
		return ""
	}
}

func sortByMz(mz, intensity, mobility []float64) {
	idx := make([]int, len(mz))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return mz[idx[a]] < mz[idx[b]] })
	mzS := make([]float64, len(mz))
	intS := make([]float64, len(mz))
	mobS := make([]float64, len(mz))
	for i, j := range idx {
		mzS[i] = mz[j]
		intS[i] = intensity[j]
		mobS[i] = mobility[j]
	}
	copy(mz, mzS)
	copy(intensity, intS)
	copy(mobility, mobS)
}
