package lfo

import (
	"math"
	"testing"
)

func TestLFOTriangleBasicShape(t *testing.T) {
	l := &LFO{}
	l.Set(1.0, 1.0, WaveTriangle)

	sr := 100.0 // one cycle per 100 samples
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(sr)
	}
	if math.Abs(samples[0]-(-1.0)) > 0.05 {
		t.Errorf("triangle at phase 0: got %f, want -1.0", samples[0])
	}
	if math.Abs(samples[25]) > 0.05 {
		t.Errorf("triangle at phase 0.25: got %f, want ~0", samples[25])
	}
	if math.Abs(samples[50]-1.0) > 0.05 {
		t.Errorf("triangle at phase 0.5: got %f, want 1.0", samples[50])
	}
}

func TestLFOSineShape(t *testing.T) {
	l := &LFO{}
	l.Set(3.0, 1.0, WaveSine)

	sr := 100.0
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(sr)
	}
	checks := map[int]float64{0: 0, 25: 3, 50: 0, 75: -3}
	for i, want := range checks {
		if math.Abs(samples[i]-want) > 1e-9 {
			t.Errorf("sine sample %d: got %f, want %f", i, samples[i], want)
		}
	}
}

func TestLFOSetPhase(t *testing.T) {
	l := &LFO{}
	l.Set(1.0, 1.0, WaveSine)
	l.SetPhase(1.25)
	if v := l.Sample(100); math.Abs(v-1) > 1e-9 {
		t.Fatalf("sine at phase 0.25: got %f, want 1", v)
	}
}

func TestLFOSquareShape(t *testing.T) {
	l := &LFO{}
	l.Set(2.0, 1.0, WaveSquare)

	sr := 100.0
	if v := l.Sample(sr); math.Abs(v-2.0) > 0.01 {
		t.Errorf("square first half: got %f, want 2.0", v)
	}
	for i := 1; i < 50; i++ {
		l.Sample(sr)
	}
	if v := l.Sample(sr); math.Abs(v-(-2.0)) > 0.01 {
		t.Errorf("square second half: got %f, want -2.0", v)
	}
}

func TestLFOSawShape(t *testing.T) {
	l := &LFO{}
	l.Set(1.0, 1.0, WaveSaw)
	if v := l.Sample(100); math.Abs(v-1.0) > 0.05 {
		t.Errorf("saw at phase 0: got %f, want 1.0", v)
	}
}

func TestLFOZeroDepthOrRate(t *testing.T) {
	l := &LFO{}
	l.Set(0, 5.0, WaveTriangle)
	if v := l.Sample(44100); v != 0 {
		t.Errorf("zero depth should return 0, got %f", v)
	}
	l.Set(1.0, 0, WaveTriangle)
	if v := l.Sample(44100); v != 0 {
		t.Errorf("zero rate should return 0, got %f", v)
	}
}

func TestLFOActive(t *testing.T) {
	l := &LFO{}
	if l.Active() {
		t.Error("default LFO should not be active")
	}
	l.Set(1.0, 5.0, WaveTriangle)
	if !l.Active() {
		t.Error("configured LFO should be active")
	}
	l.Set(0, 5.0, WaveTriangle)
	if l.Active() {
		t.Error("zero-depth LFO should not be active")
	}
}

func TestLFORandomStaysWithinDepth(t *testing.T) {
	l := &LFO{}
	l.Set(1.0, 10.0, WaveRandom)
	for i := 0; i < 500; i++ {
		if v := l.Sample(1000); math.Abs(v) > 1.0 {
			t.Fatalf("random sample exceeds depth: %f", v)
		}
	}
}

func TestParseWaveform(t *testing.T) {
	tests := []struct {
		name string
		want Waveform
		ok   bool
	}{
		{"sine", WaveSine, true},
		{" Square ", WaveSquare, true},
		{"saw", WaveSaw, true},
		{"wobble", WaveTriangle, false},
	}
	for _, tt := range tests {
		got, ok := ParseWaveform(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseWaveform(%q) = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
	if WaveRandom.String() != "random" || Waveform(42).String() != "triangle" {
		t.Error("unexpected Waveform.String()")
	}
}

func TestLFOInvalidWaveformFallsBack(t *testing.T) {
	l := &LFO{}
	l.Set(1.0, 1.0, Waveform(9))
	if v := l.Sample(100); math.Abs(v+1) > 1e-9 {
		t.Fatalf("fallback triangle at phase 0: got %f, want -1", v)
	}
}
