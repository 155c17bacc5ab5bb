package spectrum

import "sort"

// Centroid converts a profile-mode spectrum into a picked peak list.
//
// Already-centroided input is returned unchanged; the operation is
// idempotent. Peak picking is deterministic: local intensity maxima above
// a noise floor become peaks, each reported at the intensity-weighted mean
// m/z of its shoulders with the apex intensity. The noise floor is
// snr * median of the nonzero intensities.
func Centroid(s *RawSpectrum, snr float64) *RawSpectrum {
	if s.Centroided {
		return s
	}
	if snr <= 0 {
		snr = 1.0
	}

	floor := noiseFloor(s.Intensity, snr)

	n := len(s.MZ)
	var mzOut, intOut []float64
	for i := 0; i < n; i++ {
		if s.Intensity[i] <= 0 || s.Intensity[i] < floor {
			continue
		}
		if !isApex(s.Intensity, i) {
			continue
		}

		lo, hi := shoulders(s.Intensity, i)
		var weighted, total float64
		for j := lo; j <= hi; j++ {
			weighted += s.MZ[j] * s.Intensity[j]
			total += s.Intensity[j]
		}
		mz := s.MZ[i]
		if total > 0 {
			mz = weighted / total
		}

		// Equal picked m/z values collapse into one peak.
		if k := len(mzOut) - 1; k >= 0 && mzOut[k] == mz {
			intOut[k] += s.Intensity[i]
			continue
		}
		mzOut = append(mzOut, mz)
		intOut = append(intOut, s.Intensity[i])
	}

	out := &RawSpectrum{
		MZ:         mzOut,
		Intensity:  intOut,
		Centroided: true,
		Precursor:  s.Precursor,
		Scan:       s.Scan,
	}
	// Weighted centroids of adjacent peaks can land out of order when
	// shoulders overlap; restore the sort invariant. Sorting can also put
	// equal m/z values next to each other that the in-loop collapse never
	// saw, so merge again afterwards.
	if !sort.Float64sAreSorted(out.MZ) {
		sortPeaks(out.MZ, out.Intensity)
		out.MZ, out.Intensity = mergeEqualPeaks(out.MZ, out.Intensity)
	}
	return out
}

// mergeEqualPeaks collapses runs of equal m/z values in a sorted peak list
// into single peaks with summed intensity.
func mergeEqualPeaks(mz, intensity []float64) ([]float64, []float64) {
	w := 0
	for i := range mz {
		if w > 0 && mz[w-1] == mz[i] {
			intensity[w-1] += intensity[i]
			continue
		}
		mz[w] = mz[i]
		intensity[w] = intensity[i]
		w++
	}
	return mz[:w], intensity[:w]
}

// noiseFloor returns snr times the median nonzero intensity.
func noiseFloor(intensity []float64, snr float64) float64 {
	nonzero := make([]float64, 0, len(intensity))
	for _, v := range intensity {
		if v > 0 {
			nonzero = append(nonzero, v)
		}
	}
	if len(nonzero) == 0 {
		return 0
	}
	sort.Float64s(nonzero)
	return nonzero[len(nonzero)/2] * snr
}

// isApex reports whether position i is a local maximum. A plateau counts
// once, at its leftmost point. Missing neighbors count as zero.
func isApex(intensity []float64, i int) bool {
	left, right := 0.0, 0.0
	if i > 0 {
		left = intensity[i-1]
	}
	if i < len(intensity)-1 {
		right = intensity[i+1]
	}
	return intensity[i] > left && intensity[i] >= right
}

// shoulders walks down both slopes from apex i to the extent of the peak.
func shoulders(intensity []float64, i int) (lo, hi int) {
	lo, hi = i, i
	for lo > 0 && intensity[lo-1] > 0 && intensity[lo-1] <= intensity[lo] {
		lo--
	}
	for hi < len(intensity)-1 && intensity[hi+1] > 0 && intensity[hi+1] <= intensity[hi] {
		hi++
	}
	return lo, hi
}

// sortPeaks sorts both arrays by ascending m/z, keeping them aligned.
func sortPeaks(mz, intensity []float64) {
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
