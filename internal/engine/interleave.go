package engine

// Interleave writes left and right into dst as L R L R frames. It copies
// min(len(left), len(right), len(dst)/2) frames, four at a time.
func Interleave(dst, left, right []float32) {
	n := min(len(left), len(right), len(dst)/2)
	i := 0
	for ; i+4 <= n; i += 4 {
		l := left[i : i+4 : i+4]
		r := right[i : i+4 : i+4]
		d := dst[2*i : 2*i+8 : 2*i+8]
		d[0], d[1] = l[0], r[0]
		d[2], d[3] = l[1], r[1]
		d[4], d[5] = l[2], r[2]
		d[6], d[7] = l[3], r[3]
	}
	for ; i < n; i++ {
		dst[2*i] = left[i]
		dst[2*i+1] = right[i]
	}
}
