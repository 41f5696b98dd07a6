package effects

import (
	"math"
	"sync/atomic"
)

// EQ3 splits the signal at two crossovers with one-pole filters and scales
// each band. Gains are linear, 1 is unity.
type EQ3 struct {
	low, mid, high float32
	lpAlpha        float32
	hpAlpha        float32
	lpL, lpR       float32
	hpL, hpR       float32
}

func NewEQ3(sampleRate int, low, mid, high, lowFreq, highFreq float32) *EQ3 {
	return &EQ3{
		low:     low,
		mid:     mid,
		high:    high,
		lpAlpha: onePoleAlpha(float64(lowFreq), sampleRate),
		hpAlpha: onePoleAlpha(float64(highFreq), sampleRate),
	}
}

func (eq *EQ3) Name() string { return "eq3" }

func (eq *EQ3) Process(left, right []float32) {
	for i := range left {
		left[i] = eq.band(left[i], &eq.lpL, &eq.hpL)
		right[i] = eq.band(right[i], &eq.lpR, &eq.hpR)
	}
}

func (eq *EQ3) band(x float32, lp, hp *float32) float32 {
	*lp += eq.lpAlpha * (x - *lp)
	*hp += eq.hpAlpha * (x - *hp)
	lo := *lp
	hi := x - *hp
	return lo*eq.low + (x-lo-hi)*eq.mid + hi*eq.high
}

func (eq *EQ3) Reset() {
	eq.lpL, eq.lpR = 0, 0
	eq.hpL, eq.hpR = 0, 0
}

// EQ5Bands is the number of bands of EQ5.
const EQ5Bands = 5

var eq5Crossovers = [EQ5Bands - 1]float64{200, 800, 2500, 8000}

// EQ5 is a five band equalizer split at 200 Hz, 800 Hz, 2.5 kHz and 8 kHz.
// Band gains are stored as float32 bits so a UI goroutine can change them
// while the render thread reads them.
type EQ5 struct {
	gains  [EQ5Bands]atomic.Uint32
	alphas [EQ5Bands - 1]float32
	lpL    [EQ5Bands - 1]float32
	lpR    [EQ5Bands - 1]float32
}

// NewEQ5 returns an EQ5 with every band at unity.
func NewEQ5(sampleRate int) *EQ5 {
	eq := &EQ5{}
	for i, f := range eq5Crossovers {
		eq.alphas[i] = onePoleAlpha(f, sampleRate)
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1))
	}
	return eq
}

func (eq *EQ5) Name() string { return "eq5" }

// SetGain sets the linear gain of band in [0, EQ5Bands).
func (eq *EQ5) SetGain(band int, gain float32) {
	if band >= 0 && band < EQ5Bands {
		eq.gains[band].Store(math.Float32bits(gain))
	}
}

func (eq *EQ5) Gain(band int) float32 {
	if band < 0 || band >= EQ5Bands {
		return 1
	}
	return math.Float32frombits(eq.gains[band].Load())
}

func (eq *EQ5) Process(left, right []float32) {
	var g [EQ5Bands]float32
	for i := range g {
		g[i] = math.Float32frombits(eq.gains[i].Load())
	}
	for i := range left {
		left[i] = eq.split(left[i], &eq.lpL, &g)
		right[i] = eq.split(right[i], &eq.lpR, &g)
	}
}

// split peels the bands off from the bottom: each crossover lowpasses the
// remainder of the previous one.
func (eq *EQ5) split(x float32, lp *[EQ5Bands - 1]float32, g *[EQ5Bands]float32) float32 {
	var out float32
	rest := x
	for i, a := range eq.alphas {
		lp[i] += a * (rest - lp[i])
		out += lp[i] * g[i]
		rest -= lp[i]
	}
	return out + rest*g[EQ5Bands-1]
}

func (eq *EQ5) Reset() {
	clear(eq.lpL[:])
	clear(eq.lpR[:])
}
