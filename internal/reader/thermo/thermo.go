// Package thermo reads spectra from Thermo RAW containers by delegating to
// an external converter helper.
//
// The proprietary container needs the vendor's managed runtime; rather than
// linking it, each fetch launches the configured helper executable, which
// prints a single JSON spectrum document on stdout:
//
//	<helper> <file.raw> <scan|index> <value> [--metadata-only]
//
// A data-level failure is reported by the helper as a JSON document with an
// "error" field and exit status 0; a non-zero exit or an unlaunchable
// helper is an environment fault.
package thermo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/spectrum"
	"github.com/kwehner/mzusi/internal/usi"
)

// DefaultHelper is the converter executable looked up on PATH when none is
// configured.
const DefaultHelper = "thermorawread"

// Options configures the backend.
type Options struct {
	Helper       string
	MetadataOnly bool
}

// Reader is the vendor-RAW backend.
type Reader struct {
	opts Options
}

// New creates a RAW backend.
func New(opts Options) *Reader {
	if opts.Helper == "" {
		opts.Helper = DefaultHelper
	}
	return &Reader{opts: opts}
}

// Available checks that the helper executable can be found. This is the
// backend's precondition: a missing managed runtime surfaces here, before
// any run is opened.
func (r *Reader) Available() error {
	if _, err := exec.LookPath(r.opts.Helper); err != nil {
		return errors.NewBackendUnavailable("thermo", fmt.Sprintf("helper %q not found", r.opts.Helper))
	}
	return nil
}

// Run is an opened RAW run. The helper is launched per fetch, so the handle
// holds no process state; Close exists to satisfy the scoped-lease contract.
type Run struct {
	opts Options
	path string
}

// OpenRun validates the file and returns a fetch handle.
func (r *Reader) OpenRun(ctx context.Context, path string) (*Run, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewFormatProbe(path, err)
	}
	return &Run{opts: r.opts, path: path}, nil
}

// Close releases the handle.
func (run *Run) Close() error { return nil }

// helperDoc is the JSON document the helper prints.
type helperDoc struct {
	Error         string `json:"error,omitempty"`
	SpectrumCount int    `json:"spectrumCount,omitempty"`

	NativeID             string    `json:"nativeId"`
	MSLevel              int       `json:"msLevel"`
	RetentionTimeSeconds float64   `json:"retentionTimeSeconds"`
	Polarity             string    `json:"polarity"`
	Centroided           bool      `json:"centroided"`
	TotalIonCurrent      float64   `json:"totalIonCurrent"`
	PrecursorMZ          float64   `json:"precursorMz"`
	PrecursorCharge      int       `json:"precursorCharge"`
	MZs                  []float64 `json:"mzs"`
	Intensities          []float64 `json:"intensities"`
}

// FetchSpectrum launches the helper for one spectrum.
func (run *Run) FetchSpectrum(ctx context.Context, ident usi.USI) (*spectrum.RawSpectrum, error) {
	switch ident.IndexType {
	case usi.IndexScan, usi.IndexOrdinal:
	default:
		return nil, errors.NewIndexTypeUnsupported("thermo", string(ident.IndexType))
	}

	args := []string{run.path, string(ident.IndexType), ident.IndexValue}
	if run.opts.MetadataOnly {
		args = append(args, "--metadata-only")
	}

	cmd := exec.CommandContext(ctx, run.opts.Helper, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewInternal(ctx.Err())
		}
		return nil, errors.NewBackendUnavailable("thermo",
			fmt.Sprintf("helper failed: %v: %s", err, stderr.String()))
	}

	var doc helperDoc
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, errors.NewBackendUnavailable("thermo",
			fmt.Sprintf("helper produced invalid JSON: %v", err))
	}
	if doc.Error != "" {
		return nil, run.mapHelperError(ident, &doc)
	}

	out := &spectrum.RawSpectrum{
		MZ:         doc.MZs,
		Intensity:  doc.Intensities,
		Centroided: doc.Centroided,
		Scan: spectrum.ScanInfo{
			NativeID:         doc.NativeID,
			RetentionTimeSec: doc.RetentionTimeSeconds,
			MSLevel:          doc.MSLevel,
			TotalIonCurrent:  doc.TotalIonCurrent,
			Polarity:         doc.Polarity,
		},
	}
	if doc.PrecursorMZ > 0 {
		out.Precursor = &spectrum.Precursor{MZ: doc.PrecursorMZ, Charge: doc.PrecursorCharge}
	}
	if run.opts.MetadataOnly {
		out.MZ, out.Intensity = nil, nil
		out.Centroided = true
		return out, nil
	}

	// The helper emits peaks in scan-filter order, not guaranteed sorted.
	if !sort.Float64sAreSorted(out.MZ) {
		sortAligned(out.MZ, out.Intensity)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// mapHelperError converts a helper error document to the typed taxonomy.
func (run *Run) mapHelperError(ident usi.USI, doc *helperDoc) error {
	switch doc.Error {
	case "INDEX_OUT_OF_RANGE":
		value, _ := strconv.Atoi(ident.IndexValue)
		return errors.NewIndexOutOfRange(string(ident.IndexType), value, doc.SpectrumCount)
	case "INDEX_TYPE_UNSUPPORTED":
		return errors.NewIndexTypeUnsupported("thermo", string(ident.IndexType))
	default:
		return errors.NewBackendUnavailable("thermo", doc.Error)
	}
}

func sortAligned(mz, intensity []float64) {
	idx := make([]int, len(mz))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return mz[idx[a]] < mz[idx[b]] })
	mzS := make([]float64, len(mz))
	intS := make([]float64, len(intensity))
	for i, j := range idx {
		mzS[i] = mz[j]
		intS[i] = intensity[j]
	}
	copy(mz, mzS)
	copy(intensity, intS)
}
