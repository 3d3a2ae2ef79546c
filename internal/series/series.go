// Package series analyzes 1D time series: uniform resampling, single-sided
// amplitude spectra, and Welch power spectral density estimates.  Input
// samples may be non-uniformly spaced.
package series

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Series is a time series resampled onto a uniform grid.
type Series struct {
	// original samples
	T, F []float64
	// uniform resample over [T[0], T[n-1]] with the same sample count
	UT, UF []float64
	// uniform time step
	Dt float64
}

// New builds a Series from time/value sample pairs.  t must be strictly
// increasing and hold at least two samples.
func New(t, ft []float64) (*Series, error) {
	if len(t) != len(ft) {
		return nil, fmt.Errorf("time and value slices differ in length: %d vs %d", len(t), len(ft))
	}
	if len(t) < 2 {
		return nil, fmt.Errorf("a series needs at least 2 samples, got %d", len(t))
	}
	for i := 1; i < len(t); i++ {
		if t[i] <= t[i-1] {
			return nil, fmt.Errorf("time samples must be strictly increasing (t[%d]=%g, t[%d]=%g)", i-1, t[i-1], i, t[i])
		}
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(t, ft); err != nil {
		return nil, fmt.Errorf("unable to fit interpolant: %w", err)
	}

	n := len(t)
	s := &Series{
		T:  append([]float64(nil), t...),
		F:  append([]float64(nil), ft...),
		UT: make([]float64, n),
		UF: make([]float64, n),
	}
	s.Dt = (t[n-1] - t[0]) / float64(n-1)
	for i := range s.UT {
		s.UT[i] = t[0] + float64(i)*s.Dt
	}
	s.UT[n-1] = t[n-1] // avoid stepping past the interpolant's domain
	for i, ut := range s.UT {
		s.UF[i] = pl.Predict(ut)
	}
	return s, nil
}

// SampleRate returns the uniform sampling frequency.
func (s *Series) SampleRate() float64 { return 1 / s.Dt }

// Spectrum computes the single-sided amplitude spectrum of the resampled
// series and its frequency axis (0 .. SampleRate/2).
func (s *Series) Spectrum() (freq, amp []float64) {
	n := len(s.UF)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, s.UF)

	m := n / 2
	amp = make([]float64, m+1)
	freq = make([]float64, m+1)
	fs := s.SampleRate()
	for i := range amp {
		amp[i] = cmplx.Abs(coeffs[i]) / float64(n) * 2
		freq[i] = fs * 0.5 * float64(i) / float64(m)
	}
	return freq, amp
}

// PSDConfig tunes the Welch estimate.  The zero value selects the defaults:
// segments of min(256, n) samples with 50% overlap.
type PSDConfig struct {
	// SegmentLength is the number of samples per Welch segment.
	SegmentLength int
	// Overlap is the number of samples shared by consecutive segments.
	// Zero selects half the segment length.
	Overlap int
}

// PSD estimates the one-sided power spectral density of the resampled series
// using Welch's method (Hann window, mean-detrended, averaged periodograms).
func (s *Series) PSD(cfg PSDConfig) (freq, pxx []float64, err error) {
	n := len(s.UF)
	nseg := cfg.SegmentLength
	if nseg <= 0 {
		nseg = 256
		if nseg > n {
			nseg = n
		}
	}
	if nseg > n {
		return nil, nil, fmt.Errorf("segment length %d exceeds series length %d", nseg, n)
	}
	overlap := cfg.Overlap
	if overlap == 0 {
		overlap = nseg / 2
	}
	if overlap < 0 || overlap >= nseg {
		return nil, nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, nseg)
	}

	// window coefficients and their energy
	win := make([]float64, nseg)
	for i := range win {
		win[i] = 1
	}
	window.Hann(win)
	sumW2 := 0.0
	for _, w := range win {
		sumW2 += w * w
	}

	fs := s.SampleRate()
	fft := fourier.NewFFT(nseg)
	m := nseg/2 + 1
	pxx = make([]float64, m)
	seg := make([]float64, nseg)
	step := nseg - overlap
	count := 0
	for start := 0; start+nseg <= n; start += step {
		copy(seg, s.UF[start:start+nseg])
		mean := stat.Mean(seg, nil)
		for i := range seg {
			seg[i] = (seg[i] - mean) * win[i]
		}
		coeffs := fft.Coefficients(nil, seg)
		for i := 0; i < m; i++ {
			p := cmplx.Abs(coeffs[i])
			pxx[i] += p * p
		}
		count++
	}
	if count == 0 {
		return nil, nil, fmt.Errorf("no full segment of %d samples in series of length %d", nseg, n)
	}

	scale := 1 / (fs * sumW2 * float64(count))
	for i := range pxx {
		pxx[i] *= scale
		// one-sided estimate doubles everything except DC and Nyquist
		if i != 0 && !(nseg%2 == 0 && i == m-1) {
			pxx[i] *= 2
		}
	}

	freq = make([]float64, m)
	for i := range freq {
		freq[i] = fs * float64(i) / float64(nseg)
	}
	return freq, pxx, nil
}

// PeakFrequency returns the frequency with the largest amplitude in the
// single-sided spectrum, ignoring the DC bin.
func (s *Series) PeakFrequency() float64 {
	freq, amp := s.Spectrum()
	best, bestAmp := 0.0, math.Inf(-1)
	for i := 1; i < len(amp); i++ {
		if amp[i] > bestAmp {
			best, bestAmp = freq[i], amp[i]
		}
	}
	return best
}
