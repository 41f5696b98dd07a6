package effects

// Delay is a stereo feedback delay. cross routes part of each channel's
// feedback into the other for ping-pong repeats.
type Delay struct {
	bufL, bufR []float32
	pos        int
	feedback   float32
	cross      float32
	wet        float32
}

// NewDelay builds a delay of delayMs milliseconds. feedback is capped at 0.95.
func NewDelay(sampleRate int, delayMs float64, feedback, cross, wet float32) *Delay {
	n := max(int(delayMs*float64(sampleRate)/1000), 1)
	return &Delay{
		bufL:     make([]float32, n),
		bufR:     make([]float32, n),
		feedback: clamp(feedback, 0, 0.95),
		cross:    clamp(cross, 0, 1),
		wet:      clamp(wet, 0, 1),
	}
}

func (d *Delay) Name() string { return "delay" }

func (d *Delay) Process(left, right []float32) {
	straight := d.feedback * (1 - d.cross)
	crossed := d.feedback * d.cross
	dry := 1 - d.wet
	for i := range left {
		l, r := left[i], right[i]
		tapL, tapR := d.bufL[d.pos], d.bufR[d.pos]
		d.bufL[d.pos] = l + tapL*straight + tapR*crossed
		d.bufR[d.pos] = r + tapR*straight + tapL*crossed
		if d.pos++; d.pos == len(d.bufL) {
			d.pos = 0
		}
		left[i] = l*dry + tapL*d.wet
		right[i] = r*dry + tapR*d.wet
	}
}

func (d *Delay) Reset() {
	clear32(d.bufL, d.bufR)
	d.pos = 0
}
