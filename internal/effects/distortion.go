package effects

import "math"

// Distortion drives the signal into a tanh waveshaper and tames the
// resulting harmonics with a one-pole lowpass.
type Distortion struct {
	drive  float32
	output float32
	alpha  float32 // 0 disables the lowpass
	lpL    float32
	lpR    float32
}

// NewDistortion builds a distortion block. cutoffHz of 0 or above Nyquist
// disables the post filter.
func NewDistortion(sampleRate int, drive, output, cutoffHz float32) *Distortion {
	return &Distortion{
		drive:  drive,
		output: output,
		alpha:  onePoleAlpha(float64(cutoffHz), sampleRate),
	}
}

func (d *Distortion) Name() string { return "distortion" }

func (d *Distortion) Process(left, right []float32) {
	for i := range left {
		l := float32(math.Tanh(float64(left[i]*d.drive))) * d.output
		r := float32(math.Tanh(float64(right[i]*d.drive))) * d.output
		if d.alpha > 0 {
			d.lpL += d.alpha * (l - d.lpL)
			d.lpR += d.alpha * (r - d.lpR)
			l, r = d.lpL, d.lpR
		}
		left[i], right[i] = l, r
	}
}

func (d *Distortion) Reset() { d.lpL, d.lpR = 0, 0 }

// onePoleAlpha is the smoothing factor of an RC lowpass at cutoff. It returns
// 0 for cutoffs outside (0, Nyquist).
func onePoleAlpha(cutoff float64, sampleRate int) float32 {
	if sampleRate <= 0 || cutoff <= 0 || cutoff >= float64(sampleRate)/2 {
		return 0
	}
	rc := 1 / (2 * math.Pi * cutoff)
	dt := 1 / float64(sampleRate)
	return float32(dt / (rc + dt))
}
