// Package mzml reads spectra from mzML containers.
//
// The whole document is decoded once at OpenRun; spectra are then served
// by list index, 1-based scan number, or native id from the in-memory
// spectrum list. Binary peak arrays are decoded lazily per fetch.
package mzml

import (
	"context"
	"encoding/xml"
	"os"

	"golang.org/x/net/html/charset"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/spectrum"
	"github.com/kwehner/mzusi/internal/usi"
)

// Options configures the backend.
type Options struct {
	MetadataOnly bool
}

// Reader is the mzML backend.
type Reader struct {
	opts Options
}

// New creates an mzML backend.
func New(opts Options) *Reader {
	return &Reader{opts: opts}
}

// Available always succeeds: mzML needs no external runtime.
func (r *Reader) Available() error {
	return nil
}

// Run is an opened mzML run.
type Run struct {
	opts     Options
	content  mzMLContent
	index2id []string
	id2Index map[string]int
}

// OpenRun parses the document and builds the id indexes.
func (r *Reader) OpenRun(ctx context.Context, path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewFormatProbe(path, err)
	}
	defer f.Close()

	run := &Run{opts: r.opts}
	d := xml.NewDecoder(f)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&run.content); err != nil {
		return nil, errors.NewFormatProbe(path, err)
	}

	specs := run.content.Run.SpectrumList.Spectrum
	run.index2id = make([]string, len(specs))
	run.id2Index = make(map[string]int, len(specs))
	for i, sp := range specs {
		run.index2id[i] = sp.ID
		run.id2Index[sp.ID] = i
	}
	return run, nil
}

// Close releases the run. The file handle is already closed after parse;
// this drops the decoded document.
func (run *Run) Close() error {
	run.content = mzMLContent{}
	run.index2id = nil
	run.id2Index = nil
	return nil
}

// NumSpectra returns the spectrum count of the run.
func (run *Run) NumSpectra() int {
	return len(run.content.Run.SpectrumList.Spectrum)
}

// FetchSpectrum fetches one spectrum by the USI's index.
func (run *Run) FetchSpectrum(ctx context.Context, ident usi.USI) (*spectrum.RawSpectrum, error) {
	var idx int
	switch ident.IndexType {
	case usi.IndexScan, usi.IndexOrdinal:
		n, ok := ident.Ordinal()
		if !ok {
			return nil, errors.NewInvalidRequest("non-numeric ordinal index")
		}
		if n < 0 || n >= run.NumSpectra() {
			return nil, errors.NewIndexOutOfRange(string(ident.IndexType), n, run.NumSpectra())
		}
		idx = n
	case usi.IndexNativeID:
		n, ok := run.id2Index[ident.IndexValue]
		if !ok {
			return nil, errors.NewIndexOutOfRange(string(ident.IndexType), 0, run.NumSpectra())
		}
		idx = n
	default:
		return nil, errors.NewIndexTypeUnsupported("mzml", string(ident.IndexType))
	}

	sp := &run.content.Run.SpectrumList.Spectrum[idx]
	out := &spectrum.RawSpectrum{
		Scan: spectrum.ScanInfo{NativeID: sp.ID, RetentionTimeSec: -1},
	}

	readSpectrumParams(sp, out)
	if run.opts.MetadataOnly {
		// Peak arrays stay empty; mark picked so no processing runs on them.
		out.Centroided = true
		return out, nil
	}

	if err := decodePeaks(sp, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
