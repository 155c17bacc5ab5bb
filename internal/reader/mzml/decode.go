package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/spectrum"
)

// PSI-MS accessions this backend interprets.
const (
	accScanStartTime  = "MS:1000016"
	accChargeState    = "MS:1000041"
	accProfileSpec    = "MS:1000128"
	accCentroidSpec   = "MS:1000127"
	accNegativeScan   = "MS:1000129"
	accPositiveScan   = "MS:1000130"
	accTIC            = "MS:1000285"
	accMSLevel        = "MS:1000511"
	accMZArray        = "MS:1000514"
	accIntensityArray = "MS:1000515"
	accFloat32        = "MS:1000521"
	accFloat64        = "MS:1000523"
	accZlib           = "MS:1000574"
	accNoCompression  = "MS:1000576"
	accSelectedIonMZ  = "MS:1000744"

	// minutes unit on scan start time
	accUnitMinute = "UO:0000031"
)

// readSpectrumParams maps the spectrum's CV terms onto ScanInfo and the
// precursor, following the same accession handling as retention-time reads
// elsewhere in the PSI formats (minutes convert to seconds).
func readSpectrumParams(sp *xmlSpectrum, out *spectrum.RawSpectrum) {
	for _, cv := range sp.CvPar {
		switch cv.Accession {
		case accMSLevel:
			if n, err := strconv.Atoi(cv.Value); err == nil {
				out.Scan.MSLevel = n
			}
		case accTIC:
			if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
				out.Scan.TotalIonCurrent = v
			}
		case accCentroidSpec:
			out.Centroided = true
		case accProfileSpec:
			out.Centroided = false
		case accPositiveScan:
			out.Scan.Polarity = spectrum.PolarityPositive
		case accNegativeScan:
			out.Scan.Polarity = spectrum.PolarityNegative
		}
	}

	for _, sc := range sp.ScanList.Scan {
		for _, cv := range sc.CvPar {
			if cv.Accession == accScanStartTime {
				if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
					if cv.UnitAccession == accUnitMinute {
						v *= 60
					}
					out.Scan.RetentionTimeSec = v
				}
			}
		}
	}

	for _, pl := range sp.PrecursorList {
		for _, prec := range pl.Precursor {
			for _, ion := range prec.SelectedIonList.SelectedIon {
				p := &spectrum.Precursor{}
				seen := false
				for _, cv := range ion.CvPar {
					switch cv.Accession {
					case accSelectedIonMZ:
						if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
							p.MZ = v
							seen = true
						}
					case accChargeState:
						if n, err := strconv.Atoi(cv.Value); err == nil {
							p.Charge = n
						}
					}
				}
				if seen {
					out.Precursor = p
					return
				}
			}
		}
	}
}

// decodePeaks decodes the binary m/z and intensity arrays of a spectrum.
func decodePeaks(sp *xmlSpectrum, out *spectrum.RawSpectrum) error {
	for i := range sp.BinaryDataArrayList.BinaryDataArray {
		bda := &sp.BinaryDataArrayList.BinaryDataArray[i]

		isMZ, isIntensity := false, false
		float64Bit, compressed := false, false
		for _, cv := range bda.CvPar {
			switch cv.Accession {
			case accMZArray:
				isMZ = true
			case accIntensityArray:
				isIntensity = true
			case accFloat64:
				float64Bit = true
			case accFloat32:
				float64Bit = false
			case accZlib:
				compressed = true
			case accNoCompression:
				compressed = false
			}
		}
		if !isMZ && !isIntensity {
			continue
		}

		values, err := decodeBinary(bda.Binary, float64Bit, compressed)
		if err != nil {
			return errors.NewIncompleteSpectrum(
				fmt.Sprintf("spectrum %q: %v", sp.ID, err))
		}
		if isMZ {
			out.MZ = values
		} else {
			out.Intensity = values
		}
	}
	return nil
}

// decodeBinary unpacks one base64 payload into float64 values.
func decodeBinary(encoded string, float64Bit, compressed bool) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(trimWhitespace(encoded))
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}

	if compressed {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zlib init: %w", err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("zlib decode: %w", err)
		}
	}

	width := 8
	if !float64Bit {
		width = 4
	}
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("binary payload length %d not a multiple of %d", len(raw), width)
	}

	values := make([]float64, len(raw)/width)
	for i := range values {
		if float64Bit {
			bits := binary.LittleEndian.Uint64(raw[i*8:])
			values[i] = math.Float64frombits(bits)
		} else {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			values[i] = float64(math.Float32frombits(bits))
		}
	}
	return values, nil
}

func trimWhitespace(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			b = append(b, s[i])
		}
	}
	return string(b)
}
