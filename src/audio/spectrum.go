package audio

import (
	"fmt"
	"math"
	"math/cmplx"
)

// ----- Spectrum ----- //

// Spectrum computes magnitude spectra of a fixed power-of-two length.
type Spectrum struct {
	bitReverseTable []int
	wTable          []complex128
	window          []float64
	buf             []complex128
}

// NewSpectrum ...
func NewSpectrum(length int) (*Spectrum, error) {
	if length < 2 || length&(length-1) != 0 {
		return nil, fmt.Errorf("spectrum length should be a power of two: %d", length)
	}
	s := &Spectrum{
		bitReverseTable: make([]int, length),
		wTable:          make([]complex128, length),
		window:          make([]float64, length),
		buf:             make([]complex128, length),
	}
	w := -2.0 * math.Pi / float64(length)
	for i := 0; i < length; i++ {
		s.bitReverseTable[i] = bitReverse(i, length)
		s.wTable[i] = cmplx.Exp(complex(0, w*float64(i)))
		s.window[i] = 1
	}
	return s, nil
}

// Len ...
func (s *Spectrum) Len() int {
	return len(s.buf)
}

// UseHann applies a Hann window before every transform.
func (s *Spectrum) UseHann() {
	n := len(s.window)
	for i := range s.window {
		s.window[i] = 0.5 - 0.5*math.Cos(2.0*math.Pi*float64(i)/float64(n))
	}
}

func bitReverse(k, n int) int {
	m := 0
	for ; n > 1; n = n >> 1 {
		m = m<<1 + k&1
		k = k >> 1
	}
	return m
}

// Magnitudes writes |X[k]| / (N/2) for k < N/2 into out, so a full-scale sine
// at an exact bin reads 1 without a window.
func (s *Spectrum) Magnitudes(in []float64, out []float64) error {
	n := len(s.buf)
	if len(in) != n || len(out) < n/2 {
		return fmt.Errorf("length should be %v", n)
	}
	for i, v := range in {
		s.buf[s.bitReverseTable[i]] = complex(v*s.window[i], 0)
	}
	for m := 1; m < n; m <<= 1 {
		step := m << 1
		for k := 0; k < m; k++ {
			w := s.wTable[n/step*k]
			for i := k; i < n; i += step {
				j := i + m
				tmp := s.buf[j] * w
				s.buf[j] = s.buf[i] - tmp
				s.buf[i] = s.buf[i] + tmp
			}
		}
	}
	for k := 0; k < n/2; k++ {
		out[k] = cmplx.Abs(s.buf[k]) / float64(n/2)
	}
	return nil
}
