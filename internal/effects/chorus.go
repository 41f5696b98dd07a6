package effects

import "github.com/cbegin/seqmix/internal/lfo"

// Chorus is a modulated delay. The right channel's LFO runs a quarter cycle
// ahead of the left one to widen the image.
type Chorus struct {
	bufL, bufR []float32
	pos        int
	base       float32 // centre delay in samples
	modL, modR lfo.LFO
	rate       float64 // sample rate for the LFOs
	feedback   float32
	wet        float32
}

// NewChorus builds a chorus. delayMs is the centre delay, depthMs the
// modulation swing either side of it and rateHz the modulation speed.
func NewChorus(sampleRate int, delayMs, feedback, depthMs, rateHz, wet float32) *Chorus {
	sr := float32(sampleRate)
	depth := max(depthMs*sr/1000, 0)
	base := max(delayMs*sr/1000, depth+1)
	size := int(base+depth) + 2
	c := &Chorus{
		bufL:     make([]float32, size),
		bufR:     make([]float32, size),
		base:     base,
		rate:     float64(sampleRate),
		feedback: clamp(feedback, 0, 0.9),
		wet:      clamp(wet, 0, 1),
	}
	c.modL.Set(float64(depth), float64(rateHz), lfo.WaveSine)
	c.modR.Set(float64(depth), float64(rateHz), lfo.WaveSine)
	c.Reset()
	return c
}

func (c *Chorus) Name() string { return "chorus" }

func (c *Chorus) Process(left, right []float32) {
	dry := 1 - c.wet
	for i := range left {
		l, r := left[i], right[i]
		tapL := c.tap(c.bufL, c.base+float32(c.modL.Sample(c.rate)))
		tapR := c.tap(c.bufR, c.base+float32(c.modR.Sample(c.rate)))
		c.bufL[c.pos] = l + tapL*c.feedback
		c.bufR[c.pos] = r + tapR*c.feedback
		if c.pos++; c.pos == len(c.bufL) {
			c.pos = 0
		}
		left[i] = l*dry + tapL*c.wet
		right[i] = r*dry + tapR*c.wet
	}
}

// tap reads buf delay samples behind the write position with linear
// interpolation.
func (c *Chorus) tap(buf []float32, delay float32) float32 {
	n := len(buf)
	at := float32(c.pos) - delay
	for at < 0 {
		at += float32(n)
	}
	i := int(at)
	frac := at - float32(i)
	i %= n
	j := i + 1
	if j == n {
		j = 0
	}
	return buf[i]*(1-frac) + buf[j]*frac
}

func (c *Chorus) Reset() {
	clear32(c.bufL, c.bufR)
	c.pos = 0
	c.modL.Reset()
	c.modR.Reset()
	c.modR.SetPhase(0.25)
}
