package lfo

import (
	"math"
	"strings"
)

// Waveform selects the LFO shape.
type Waveform int

const (
	WaveSaw Waveform = iota
	WaveSquare
	WaveTriangle
	WaveRandom
	WaveSine
)

var waveNames = [...]string{"saw", "square", "triangle", "random", "sine"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveNames) {
		return "triangle"
	}
	return waveNames[w]
}

// ParseWaveform maps a name to a waveform. Unknown names give WaveTriangle
// and false.
func ParseWaveform(name string) (Waveform, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range waveNames {
		if n == name {
			return Waveform(i), true
		}
	}
	return WaveTriangle, false
}

// LFO is a low-frequency oscillator that produces per-sample modulation.
// One LFO is shared by every voice of a synth; the chorus block keeps one per
// channel.
type LFO struct {
	depth    float64 // units depend on the consumer: semitones, milliseconds, gain
	rateHz   float64
	waveform Waveform
	phase    float64 // [0, 1)
	randVal  float64 // sample-and-hold value for WaveRandom
}

// Set configures the LFO parameters.
func (l *LFO) Set(depth, rateHz float64, waveform Waveform) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < WaveSaw || waveform > WaveSine {
		waveform = WaveTriangle
	}
	l.waveform = waveform
}

// SetPhase starts the oscillator at phase, wrapped into [0, 1).
func (l *LFO) SetPhase(phase float64) {
	l.phase = phase - math.Floor(phase)
}

// Sample advances the LFO by one sample and returns a value in [-depth, +depth].
// Returns 0 if depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}

	var v float64
	switch l.waveform {
	case WaveSaw:
		v = 1.0 - 2.0*l.phase
	case WaveSquare:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case WaveRandom:
		v = l.randVal
	case WaveSine:
		v = math.Sin(2 * math.Pi * l.phase)
	default:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	}

	old := l.phase
	l.phase += l.rateHz / sampleRate
	for l.phase >= 1.0 {
		l.phase -= 1.0
	}

	// new held value on every cycle wrap
	if l.waveform == WaveRandom && l.phase < old {
		l.randVal = math.Sin(l.phase*12345.6789+l.randVal*67890.1234) * 2.0
		l.randVal -= math.Floor(l.randVal)
		l.randVal = l.randVal*2.0 - 1.0
	}

	return v * l.depth
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset zeros the LFO phase.
func (l *LFO) Reset() {
	l.phase = 0
	l.randVal = 0
}
