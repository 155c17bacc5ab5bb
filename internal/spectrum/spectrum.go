// Package spectrum holds the backend-agnostic in-memory spectrum model and
// the signal-processing steps applied between extraction and assembly.
package spectrum

import (
	"fmt"
	"sort"

	"github.com/kwehner/mzusi/internal/errors"
)

// Polarity values carried in ScanInfo.
const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// Precursor describes the selected ion of an MSn spectrum.
type Precursor struct {
	MZ     float64
	Charge int // 0 when unknown
}

// ScanInfo carries per-scan metadata common to all backends.
// Zero values mean unknown, except RetentionTimeSec which uses -1.
type ScanInfo struct {
	NativeID         string
	RetentionTimeSec float64 // seconds; negative means unknown
	MSLevel          int
	TotalIonCurrent  float64
	Polarity         string
	// MeanInverseK0 is the intensity-weighted mean 1/K0 of an ion-mobility
	// frame, set by the mobility merger. Zero when not a mobility frame.
	MeanInverseK0 float64
}

// PeakList is the read contract shared by raw and merged spectra.
// The record assembler depends only on this.
type PeakList interface {
	Arrays() (mz, intensity []float64)
	Info() ScanInfo
	PrecursorInfo() *Precursor
	IsCentroided() bool
}

// RawSpectrum is the format-independent representation a backend returns.
//
// Invariants: MZ is sorted ascending; len(MZ) == len(Intensity); Mobility,
// when present, is index-aligned with MZ.
type RawSpectrum struct {
	MZ         []float64
	Intensity  []float64
	Mobility   []float64 // nil unless the source is an ion-mobility frame
	Centroided bool
	Precursor  *Precursor
	Scan       ScanInfo
}

// Arrays returns the index-aligned peak arrays.
func (s *RawSpectrum) Arrays() ([]float64, []float64) { return s.MZ, s.Intensity }

// Info returns the scan metadata.
func (s *RawSpectrum) Info() ScanInfo { return s.Scan }

// PrecursorInfo returns the selected ion, if any.
func (s *RawSpectrum) PrecursorInfo() *Precursor { return s.Precursor }

// IsCentroided reports whether the peak list is already picked.
func (s *RawSpectrum) IsCentroided() bool { return s.Centroided }

// HasMobility reports whether the spectrum carries a mobility dimension.
func (s *RawSpectrum) HasMobility() bool { return s.Mobility != nil }

// Validate checks the structural invariants. Backends call this at the
// boundary before handing a spectrum to the pipeline.
func (s *RawSpectrum) Validate() error {
	if len(s.MZ) != len(s.Intensity) {
		return errors.NewIncompleteSpectrum(
			fmt.Sprintf("mz/intensity length mismatch: %d vs %d", len(s.MZ), len(s.Intensity)))
	}
	if s.Mobility != nil && len(s.Mobility) != len(s.MZ) {
		return errors.NewIncompleteSpectrum(
			fmt.Sprintf("mobility length mismatch: %d vs %d", len(s.Mobility), len(s.MZ)))
	}
	if !sort.Float64sAreSorted(s.MZ) {
		return errors.NewIncompleteSpectrum("mz array not sorted ascending")
	}
	return nil
}

// MergedSpectrum is a mobility-collapsed spectrum. It has no mobility
// dimension and is always centroided.
type MergedSpectrum struct {
	MZ        []float64
	Intensity []float64
	Precursor *Precursor
	Scan      ScanInfo
}

// Arrays returns the index-aligned peak arrays.
func (m *MergedSpectrum) Arrays() ([]float64, []float64) { return m.MZ, m.Intensity }

// Info returns the scan metadata.
func (m *MergedSpectrum) Info() ScanInfo { return m.Scan }

// PrecursorInfo returns the selected ion, if any.
func (m *MergedSpectrum) PrecursorInfo() *Precursor { return m.Precursor }

// IsCentroided always reports true for a merged spectrum.
func (m *MergedSpectrum) IsCentroided() bool { return true }
