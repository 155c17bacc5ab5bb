// Package proxi assembles the canonical PROXI-schema record returned to
// callers. Assembly is a pure transformation over an already-processed
// spectrum; every fallible step happens upstream.
package proxi

import (
	"strconv"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/spectrum"
	"github.com/kwehner/mzusi/internal/usi"
)

// Spectrum status values defined by the PROXI schema.
const (
	StatusReadable        = "READABLE"
	StatusPeakUnavailable = "PEAK UNAVAILABLE"
)

// PSI-MS controlled vocabulary accessions used in the attribute list.
const (
	cvScanStartTime = "MS:1000016"
	cvChargeState   = "MS:1000041"
	cvPositiveScan  = "MS:1000130"
	cvNegativeScan  = "MS:1000129"
	cvTIC           = "MS:1000285"
	cvMSLevel       = "MS:1000511"
	cvSelectedIonMZ = "MS:1000744"
	cvInverseK0     = "MS:1002815"
	cvNumberOfPeaks = "MS:1008040"
)

// Attribute is one name/value pair in the PROXI attribute list.
type Attribute struct {
	Accession string `json:"accession"`
	Name      string `json:"name"`
	Value     string `json:"value,omitempty"`
}

// Record is the canonical output of a resolution call.
type Record struct {
	USI         string      `json:"usi"`
	Status      string      `json:"status"`
	MZs         []float64   `json:"mzs"`
	Intensities []float64   `json:"intensities"`
	Attributes  []Attribute `json:"attributes"`
}

// Assemble builds the output record from a processed spectrum.
//
// The spectrum's metadata and precursor map onto the fixed PROXI attribute
// vocabulary. A mz/intensity length mismatch here is an upstream invariant
// violation and surfaces as INCOMPLETE_SPECTRUM.
func Assemble(ident usi.USI, s spectrum.PeakList, status string) (*Record, error) {
	mzs, intensities := s.Arrays()
	if len(mzs) != len(intensities) {
		return nil, errors.NewIncompleteSpectrum(
			"mz/intensity arrays diverged before assembly")
	}
	// Metadata-only spectra carry no arrays; emit [] rather than null.
	if mzs == nil {
		mzs = []float64{}
	}
	if intensities == nil {
		intensities = []float64{}
	}

	rec := &Record{
		USI:         ident.String(),
		Status:      status,
		MZs:         mzs,
		Intensities: intensities,
	}

	info := s.Info()
	if info.MSLevel > 0 {
		rec.addAttr(cvMSLevel, "ms level", strconv.Itoa(info.MSLevel))
	}
	if info.RetentionTimeSec >= 0 {
		rec.addAttr(cvScanStartTime, "scan start time", formatFloat(info.RetentionTimeSec))
	}
	if info.TotalIonCurrent > 0 {
		rec.addAttr(cvTIC, "total ion current", formatFloat(info.TotalIonCurrent))
	}
	switch info.Polarity {
	case spectrum.PolarityPositive:
		rec.addAttr(cvPositiveScan, "positive scan", "")
	case spectrum.PolarityNegative:
		rec.addAttr(cvNegativeScan, "negative scan", "")
	}
	if p := s.PrecursorInfo(); p != nil {
		rec.addAttr(cvSelectedIonMZ, "selected ion m/z", formatFloat(p.MZ))
		if p.Charge != 0 {
			rec.addAttr(cvChargeState, "charge state", strconv.Itoa(p.Charge))
		}
	}
	if info.MeanInverseK0 > 0 {
		rec.addAttr(cvInverseK0, "inverse reduced ion mobility", formatFloat(info.MeanInverseK0))
	}
	rec.addAttr(cvNumberOfPeaks, "number of peaks", strconv.Itoa(len(mzs)))

	return rec, nil
}

func (r *Record) addAttr(accession, name, value string) {
	r.Attributes = append(r.Attributes, Attribute{Accession: accession, Name: name, Value: value})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
