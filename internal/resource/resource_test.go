package resource

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func sineData(n, rate int, freq float64) []int {
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return data
}

func TestLoadMonoResampledTo48k(t *testing.T) {
	t.Parallel()

	path := writeEncodedWAV(t, 44100, 16, 1, sineData(44100, 44100, 440))
	r := New(1, path)
	if err := r.Load(48000); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer r.Close()

	if got := r.TotalSamples(); got < 47999 || got > 48001 {
		t.Fatalf("TotalSamples() = %d, want 48000", got)
	}
	if r.Channels() != 2 || r.SampleRate() != 48000 {
		t.Fatalf("got %d channels at %d Hz", r.Channels(), r.SampleRate())
	}
	if math.Abs(r.Duration()-1) > 1e-3 {
		t.Fatalf("Duration() = %v, want 1", r.Duration())
	}
	if r.Streaming() {
		t.Fatal("a one second file should be fully cached")
	}

	left := make([]float32, r.TotalSamples())
	right := make([]float32, r.TotalSamples())
	if n := r.GetSamples(0, left, right); int64(n) != r.TotalSamples() {
		t.Fatalf("GetSamples() = %d, want %d", n, r.TotalSamples())
	}
	var peak float32
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("sample %d: left %v != right %v", i, left[i], right[i])
		}
		peak = max(peak, left[i])
	}
	if peak < 0.45 || peak > 0.5 {
		t.Fatalf("peak = %v, want about 16000/32768", peak)
	}
	if want := (48000 + SamplesPerPeak - 1) / SamplesPerPeak; len(r.Peaks()) != want {
		t.Fatalf("got %d peaks, want %d", len(r.Peaks()), want)
	}
}

func TestGetSamplesBounds(t *testing.T) {
	t.Parallel()

	path := writeEncodedWAV(t, 8000, 16, 2, make([]int, 2*100))
	r := New(1, path)

	left := make([]float32, 64)
	right := make([]float32, 64)
	if n := r.GetSamples(0, left, right); n != 0 {
		t.Fatalf("unloaded GetSamples() = %d, want 0", n)
	}
	if err := r.Load(8000); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name  string
		start int64
		size  int
		want  int
	}{
		{"negative start", -1, 64, 0},
		{"full request", 0, 64, 64},
		{"clipped at end", 80, 64, 20},
		{"at end", 100, 64, 0},
		{"past end", 500, 64, 0},
		{"empty request", 10, 0, 0},
	}
	for _, tt := range tests {
		if n := r.GetSamples(tt.start, left[:tt.size], right[:tt.size]); n != tt.want {
			t.Fatalf("%s: GetSamples(%d, %d) = %d, want %d", tt.name, tt.start, tt.size, n, tt.want)
		}
	}
	if n := r.GetSamples(0, left[:10], right[:4]); n != 4 {
		t.Fatalf("uneven buffers: GetSamples() = %d, want 4", n)
	}
}

func TestLoadFailureIsStored(t *testing.T) {
	t.Parallel()

	bad := writeFile(t, []byte("RIFF\x04\x00\x00\x00WAVE"))
	r := New(1, bad)
	err := r.Load(48000)
	if !errors.Is(err, ErrMissingFmtChunk) {
		t.Fatalf("Load() error = %v, want ErrMissingFmtChunk", err)
	}
	if !errors.Is(r.Err(), ErrMissingFmtChunk) || r.Loaded() {
		t.Fatalf("stored error = %v, loaded = %v", r.Err(), r.Loaded())
	}

	missing := New(2, filepath.Join(t.TempDir(), "nope.wav"))
	if err := missing.Load(48000); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load() error = %v, want fs.ErrNotExist", err)
	}
	if err := New(3, bad).Load(0); err == nil {
		t.Fatal("expected error for a zero target rate")
	}
}

func TestStreamingWindow(t *testing.T) {
	t.Parallel()

	const frames = 8000
	data := make([]int, 2*frames)
	for i := 0; i < frames; i++ {
		data[2*i] = i
		data[2*i+1] = -i
	}
	path := writeEncodedWAV(t, 8000, 16, 2, data)
	r := New(1, path, WithStreamThreshold(0.5), WithStreamWindow(0.25))
	if err := r.Load(8000); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer r.Close()

	if !r.Streaming() {
		t.Fatal("expected a streaming window for a file above the threshold")
	}
	if start, end := r.WindowBounds(); start != 0 || end != 2000 {
		t.Fatalf("initial window = [%d, %d), want [0, 2000)", start, end)
	}

	// straddles the window end, so both sources are read
	left := make([]float32, 1000)
	right := make([]float32, 1000)
	if n := r.GetSamples(1500, left, right); n != 1000 {
		t.Fatalf("GetSamples() = %d, want 1000", n)
	}
	for i := range left {
		want := float32(1500+i) / 32768
		if left[i] != want || right[i] != -want {
			t.Fatalf("frame %d = (%v, %v), want (%v, %v)", 1500+i, left[i], right[i], want, -want)
		}
	}

	r.PrepareForPosition(6000)
	deadline := time.Now().Add(2 * time.Second)
	for {
		start, end := r.WindowBounds()
		if start == 6000 && end == frames {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("window did not move, still [%d, %d)", start, end)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := r.GetSamples(7990, left, right); n != 10 {
		t.Fatalf("GetSamples() near end = %d, want 10", n)
	}
	if want := float32(7995) / 32768; left[5] != want {
		t.Fatalf("frame 7995 = %v, want %v", left[5], want)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := r.GetSamples(0, left, right); n != 0 {
		t.Fatalf("GetSamples() after Close = %d, want 0", n)
	}
	r.PrepareForPosition(100)
}

func TestPrepareForPositionCachedIsNoop(t *testing.T) {
	path := writeEncodedWAV(t, 8000, 16, 1, make([]int, 800))
	r := New(1, path)
	if err := r.Load(8000); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	r.PrepareForPosition(400)
	if start, end := r.WindowBounds(); start != 0 || end != 0 {
		t.Fatalf("cached resource reported window [%d, %d)", start, end)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestLoadAfterCloseFails(t *testing.T) {
	t.Parallel()

	path := writeEncodedWAV(t, 8000, 16, 1, make([]int, 8000))
	r := New(1, path, WithStreamThreshold(0.5))
	if err := r.Load(8000); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !r.Streaming() {
		t.Fatal("expected a streaming window before Close")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := r.Load(8000); !errors.Is(err, ErrClosed) {
		t.Fatalf("Load() after Close error = %v, want ErrClosed", err)
	}
	if r.Loaded() {
		t.Fatal("Loaded() after a refused reload = true")
	}
	left := make([]float32, 10)
	right := make([]float32, 10)
	if n := r.GetSamples(0, left, right); n != 0 {
		t.Fatalf("GetSamples() after a refused reload = %d, want 0", n)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
