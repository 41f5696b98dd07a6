package engine

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectrumAnalyzer keeps the magnitude spectrum, in dB, of the last full
// frame of the mono downmix pushed into it.
type SpectrumAnalyzer struct {
	size   int
	fft    *fourier.FFT
	window []float64
	norm   float64
	fill   int
	buf    []float64
	frame  []float64
	coeffs []complex128

	mu   sync.Mutex
	mags []float64
}

// NewSpectrumAnalyzer returns an analyzer with frames of size samples.
// Sizes below 16 are raised to 16.
func NewSpectrumAnalyzer(size int) *SpectrumAnalyzer {
	size = max(size, 16)
	s := &SpectrumAnalyzer{
		size:   size,
		fft:    fourier.NewFFT(size),
		window: hann(size),
		buf:    make([]float64, size),
		frame:  make([]float64, size),
		coeffs: make([]complex128, size/2+1),
		mags:   make([]float64, size/2+1),
	}
	for _, w := range s.window {
		s.norm += w
	}
	s.norm /= 2
	for i := range s.mags {
		s.mags[i] = SilenceDB
	}
	return s
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func (s *SpectrumAnalyzer) Push(left, right []float32) {
	for i := range min(len(left), len(right)) {
		s.buf[s.fill] = float64(left[i]+right[i]) * 0.5
		if s.fill++; s.fill == s.size {
			s.analyze()
			s.fill = 0
		}
	}
}

func (s *SpectrumAnalyzer) analyze() {
	for i, v := range s.buf {
		s.frame[i] = v * s.window[i]
	}
	s.coeffs = s.fft.Coefficients(s.coeffs, s.frame)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.coeffs {
		mag := cmplx.Abs(c) / s.norm
		if mag <= 0 {
			s.mags[k] = SilenceDB
			continue
		}
		s.mags[k] = max(20*math.Log10(mag), SilenceDB)
	}
}

// Spectrum returns size/2+1 bin magnitudes in dBFS.
func (s *SpectrumAnalyzer) Spectrum() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.mags))
	copy(out, s.mags)
	return out
}

// BinFrequency returns the centre frequency of bin k in Hz.
func (s *SpectrumAnalyzer) BinFrequency(k, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(s.size)
}

// PanAnalyzer measures the stereo balance and the L/R correlation of each
// pushed buffer.
type PanAnalyzer struct {
	mu          sync.Mutex
	balance     float32
	correlation float32
}

func (p *PanAnalyzer) Push(left, right []float32) {
	n := min(len(left), len(right))
	left, right = left[:n], right[:n]
	ll := vek32.Dot(left, left)
	rr := vek32.Dot(right, right)
	lr := vek32.Dot(left, right)

	var balance, corr float32
	if ll+rr > 0 {
		l, r := float32(math.Sqrt(float64(ll))), float32(math.Sqrt(float64(rr)))
		balance = (r - l) / (r + l)
	}
	if ll > 0 && rr > 0 {
		corr = lr / float32(math.Sqrt(float64(ll)*float64(rr)))
	}
	p.mu.Lock()
	p.balance, p.correlation = balance, corr
	p.mu.Unlock()
}

// Balance is -1 for hard left, 0 for centred and 1 for hard right.
func (p *PanAnalyzer) Balance() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// Correlation is 1 for mono, 0 for unrelated channels and -1 for
// out-of-phase channels.
func (p *PanAnalyzer) Correlation() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.correlation
}
