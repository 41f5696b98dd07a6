package resource

import "github.com/viterin/vek/vek32"

// SamplesPerPeak is the bucket size of the waveform summary.
const SamplesPerPeak = 256

// Peak is the sample range of one waveform bucket.
type Peak struct {
	MinL, MaxL float32
	MinR, MaxR float32
}

func computePeaks(left, right []float32) []Peak {
	n := min(len(left), len(right))
	if n == 0 {
		return nil
	}
	peaks := make([]Peak, 0, (n+SamplesPerPeak-1)/SamplesPerPeak)
	for start := 0; start < n; start += SamplesPerPeak {
		end := min(start+SamplesPerPeak, n)
		l, r := left[start:end], right[start:end]
		peaks = append(peaks, Peak{
			MinL: vek32.Min(l),
			MaxL: vek32.Max(l),
			MinR: vek32.Min(r),
			MaxR: vek32.Max(r),
		})
	}
	return peaks
}
