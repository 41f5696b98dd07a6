package resource

// resampleLinear converts in from srcRate to dstRate by linear interpolation.
// The output length is len(in)*dstRate/srcRate, truncated. Source positions
// past the end read as silence.
func resampleLinear(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return in
	}
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	out := make([]float32, n)
	step := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))
		a := sampleAt(in, idx)
		b := sampleAt(in, idx+1)
		out[i] = a + (b-a)*frac
	}
	return out
}

func sampleAt(buf []float32, i int) float32 {
	if i < 0 || i >= len(buf) {
		return 0
	}
	return buf[i]
}
