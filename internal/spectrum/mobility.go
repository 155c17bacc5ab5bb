package spectrum

// MergeMobility collapses the mobility dimension of an ion-mobility frame.
//
// Triplets (mz, intensity, mobility) are grouped by m/z proximity within
// tolerancePPM; each group becomes one peak at the intensity-weighted mean
// m/z with the summed intensity, approximating the integrated ion current
// across the mobility dimension. Merging is repeated until no two output
// m/z values lie within the tolerance of each other, so equal m/z values
// merge rather than duplicate. The result carries no mobility array and is
// centroided by construction.
//
// The output point count never exceeds the input's.
func MergeMobility(s *RawSpectrum, tolerancePPM float64) *MergedSpectrum {
	if tolerancePPM <= 0 {
		tolerancePPM = 20.0
	}

	mz := append([]float64(nil), s.MZ...)
	intensity := append([]float64(nil), s.Intensity...)
	mobility := append([]float64(nil), s.Mobility...)

	// Weighted mean 1/K0 across the whole frame, kept as scan metadata
	// after the per-peak mobility coordinate is dropped.
	var k0Weighted, total float64
	for i := range mobility {
		k0Weighted += mobility[i] * intensity[i]
		total += intensity[i]
	}

	for {
		var outMZ, outInt []float64
		merged := false
		i := 0
		for i < len(mz) {
			groupMZ := mz[i] * intensity[i]
			groupInt := intensity[i]
			j := i + 1
			for j < len(mz) && withinPPM(mz[i], mz[j], tolerancePPM) {
				groupMZ += mz[j] * intensity[j]
				groupInt += intensity[j]
				merged = true
				j++
			}
			center := mz[i]
			if groupInt > 0 {
				center = groupMZ / groupInt
			}
			outMZ = append(outMZ, center)
			outInt = append(outInt, groupInt)
			i = j
		}
		mz, intensity = outMZ, outInt
		if !merged {
			break
		}
	}

	out := &MergedSpectrum{
		MZ:        mz,
		Intensity: intensity,
		Precursor: s.Precursor,
		Scan:      s.Scan,
	}
	if total > 0 {
		out.Scan.MeanInverseK0 = k0Weighted / total
	}
	return out
}

// withinPPM reports whether b lies within tol ppm of a.
func withinPPM(a, b, tol float64) bool {
	if a == 0 {
		return b == 0
	}
	d := b - a
	if d < 0 {
		d = -d
	}
	return d <= a*tol/1e6
}
