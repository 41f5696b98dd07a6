package effects

import "math"

// Compressor is a stereo-linked feed-forward compressor. Both channels follow
// the louder one so the image does not shift under gain reduction.
type Compressor struct {
	threshold float32 // linear
	ratio     float32
	attack    float32 // smoothing coefficient
	release   float32
	makeup    float32
	env       float32
}

// NewCompressor builds a compressor. thresholdDB is in dBFS, ratio is n:1,
// attack and release are in milliseconds, makeupDB is applied after
// reduction.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: dbToGain(thresholdDB),
		ratio:     ratio,
		attack:    timeCoeff(attackMs, sampleRate),
		release:   timeCoeff(releaseMs, sampleRate),
		makeup:    dbToGain(makeupDB),
	}
}

func (c *Compressor) Name() string { return "compressor" }

func (c *Compressor) Process(left, right []float32) {
	for i := range left {
		l, r := left[i], right[i]
		level := max(abs32(l), abs32(r))
		if level > c.env {
			c.env += c.attack * (level - c.env)
		} else {
			c.env += c.release * (level - c.env)
		}
		g := c.gain(c.env) * c.makeup
		left[i] = l * g
		right[i] = r * g
	}
}

// gain returns the reduction for an envelope level: above the threshold the
// excess is scaled down by the ratio.
func (c *Compressor) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	over := float64(env / c.threshold)
	return float32(math.Pow(over, float64(1/c.ratio-1)))
}

// Envelope is the current detector level, mostly useful for metering.
func (c *Compressor) Envelope() float32 { return c.env }

func (c *Compressor) Reset() { c.env = 0 }

func dbToGain(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

func timeCoeff(ms float32, sampleRate int) float32 {
	if ms <= 0 || sampleRate <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(float64(ms)*float64(sampleRate)/1000)))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
