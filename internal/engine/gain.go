package engine

import (
	"math"

	"github.com/cbegin/seqmix/internal/tempo"
	"github.com/viterin/vek/vek32"
)

// SilenceDB is the floor reported for silent or near-silent buffers.
const SilenceDB = -100

// rmsDecayDB is how far a cached track level falls per callback without
// any contribution from that track.
const rmsDecayDB = 3

// PanGains maps pan in [-1, 1] onto a quarter circle and returns the cosine
// and sine gains. Both are cos(π/4) at the centre.
func PanGains(pan float32) (l, r float32) {
	p := float64(max(-1, min(1, pan)))
	angle := (p + 1) * 0.25 * math.Pi
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// panner applies volume and pan to a stereo source. Off centre the quieter
// side's signal is folded into the louder side instead of being dropped.
type panner struct {
	l, r           float32
	crossL, crossR float32
}

func newPanner(volume, pan float32) panner {
	l, r := PanGains(pan)
	return panner{
		l:      l * volume,
		r:      r * volume,
		crossL: max(0, l-r) * volume,
		crossR: max(0, r-l) * volume,
	}
}

func (p panner) apply(inL, inR, gain float32) (float32, float32) {
	return (inL*p.l + inR*p.crossL) * gain, (inR*p.r + inL*p.crossR) * gain
}

// FadeGain returns the fade gain at pos for a region [start, end) with
// linear fades of fadeIn and fadeOut samples at either edge. The result is
// always in [0, 1].
func FadeGain(pos, start, fadeIn, end, fadeOut int64) float32 {
	g := float32(1)
	if fadeIn > 0 && pos < start+fadeIn {
		g = float32(pos-start) / float32(fadeIn)
	}
	if fadeOut > 0 && pos > end-fadeOut {
		g = min(g, float32(end-pos)/float32(fadeOut))
	}
	return max(0, min(1, g))
}

// fadeRange is a pending fade-out in the engine's sample counter domain.
type fadeRange struct {
	start, end int64
}

func (f fadeRange) gain(pos int64) float32 {
	switch {
	case pos < f.start:
		return 1
	case pos >= f.end:
		return 0
	}
	return float32(f.end-pos) / float32(f.end-f.start)
}

func (f fadeRange) done(pos int64) bool { return pos >= f.end }

// TickToSamples converts a tick count at a constant bpm and ppq. Invalid
// values fall back to the defaults of the tempo package.
func TickToSamples(ticks int, bpm float64, ppq, sampleRate int) int64 {
	bpm, ppq = sanitize(bpm, ppq)
	seconds := float64(ticks) * 60 / (bpm * float64(ppq))
	return int64(math.Round(seconds * float64(sampleRate)))
}

// SampleToTicks is the inverse of TickToSamples, truncated to whole ticks.
func SampleToTicks(samples int64, bpm float64, ppq, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	bpm, ppq = sanitize(bpm, ppq)
	seconds := float64(samples) / float64(sampleRate)
	return int(seconds * bpm * float64(ppq) / 60)
}

func sanitize(bpm float64, ppq int) (float64, int) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		bpm = tempo.DefaultBPM
	}
	if ppq <= 0 {
		ppq = tempo.DefaultPPQ
	}
	return bpm, ppq
}

// rmsDB returns the level of buf in dBFS, floored at SilenceDB. sq is
// scratch space at least as long as buf.
func rmsDB(buf, sq []float32) float32 {
	if len(buf) == 0 {
		return SilenceDB
	}
	sq = sq[:len(buf)]
	vek32.Mul_Into(sq, buf, buf)
	ms := vek32.Mean(sq)
	if ms <= 0 {
		return SilenceDB
	}
	db := float32(10 * math.Log10(float64(ms)))
	return max(db, SilenceDB)
}

func decayDB(db float32) float32 {
	return max(db-rmsDecayDB, SilenceDB)
}

// masterGain maps a linear volume control to a gain. Below unity the control
// is squared so the lower half of its travel stays usable.
func masterGain(volume float32) float32 {
	if volume < 1 {
		return volume * volume
	}
	return volume
}
