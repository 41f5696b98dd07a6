package effects

// Reverb is a Schroeder reverb: four parallel combs into two series allpass
// filters per channel. The right channel's delay lines are slightly longer
// so the tail decorrelates.
type Reverb struct {
	left, right reverbChannel
	wet         float32
}

type reverbChannel struct {
	combs   [4]delayLine
	allpass [2]delayLine
}

type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

const stereoSpread = 23

var (
	combRatios    = [4]int{1000, 1117, 1271, 1437}
	allpassRatios = [2]int{347, 213}
)

// NewReverb builds a reverb. roomSize in [0, 1] scales the delay lengths,
// feedback sets the decay and is capped at 0.95.
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := max(int(float32(sampleRate)*clamp(roomSize, 0, 1)*0.05), 10)
	fb := clamp(feedback, 0, 0.95)
	return &Reverb{
		left:  newReverbChannel(base, 0, fb),
		right: newReverbChannel(base, stereoSpread, fb),
		wet:   clamp(wet, 0, 1),
	}
}

func newReverbChannel(base, spread int, fb float32) reverbChannel {
	var ch reverbChannel
	for i, ratio := range combRatios {
		ch.combs[i] = delayLine{buf: make([]float32, base*ratio/1000+spread), fb: fb}
	}
	for i, ratio := range allpassRatios {
		ch.allpass[i] = delayLine{buf: make([]float32, max(base*ratio/1000+spread, 1)), fb: 0.5}
	}
	return ch
}

func (r *Reverb) Name() string { return "reverb" }

func (r *Reverb) Process(left, right []float32) {
	dry := 1 - r.wet
	for i := range left {
		in := (left[i] + right[i]) * 0.5
		left[i] = left[i]*dry + r.left.process(in)*r.wet
		right[i] = right[i]*dry + r.right.process(in)*r.wet
	}
}

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (ch *reverbChannel) process(in float32) float32 {
	var out float32
	for i := range ch.combs {
		out += ch.combs[i].comb(in)
	}
	out *= 0.25
	for i := range ch.allpass {
		out = ch.allpass[i].allpass(out)
	}
	return out
}

func (ch *reverbChannel) reset() {
	for i := range ch.combs {
		ch.combs[i].reset()
	}
	for i := range ch.allpass {
		ch.allpass[i].reset()
	}
}

func (d *delayLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *delayLine) allpass(in float32) float32 {
	held := d.buf[d.pos]
	d.buf[d.pos] = in + held*d.fb
	d.advance()
	return held - in
}

func (d *delayLine) advance() {
	if d.pos++; d.pos == len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) reset() {
	clear(d.buf)
	d.pos = 0
}
