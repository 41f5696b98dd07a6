package synth

import (
	"math"
	"testing"
)

func renderPeak(s SoftSynth, frames int) float64 {
	left := make([]float32, frames)
	right := make([]float32, frames)
	s.RenderAudio(left, right)
	var peak float64
	for i := range left {
		peak = max(peak, math.Abs(float64(left[i])))
	}
	return peak
}

func TestFMAlgorithms(t *testing.T) {
	for _, tc := range []struct {
		name string
		ops  int
		alg  Algorithm
	}{
		{"1-op", 1, AlgCascade},
		{"2-op cascade", 2, AlgCascade},
		{"2-op additive", 2, AlgAdditive},
		{"3-op stack", 3, AlgStack},
		{"4-op cascade", 4, AlgCascade},
		{"4-op pairs", 4, AlgPairs},
		{"4-op additive", 4, AlgAdditive},
	} {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultFMParams()
			params.Operators = tc.ops
			params.Algorithm = tc.alg
			f := NewFM("fm", 48000, params)
			f.NotePlay(60, 100)
			peak := renderPeak(f, 2000)
			if peak < 0.001 || peak > 1 {
				t.Errorf("peak = %v", peak)
			}
		})
	}
}

func TestFMFeedbackChangesOutput(t *testing.T) {
	sum := func(fb float64) float64 {
		params := DefaultFMParams()
		params.Feedback = fb
		f := NewFM("fm", 48000, params)
		f.NotePlay(60, 100)
		left := make([]float32, 1000)
		f.RenderAudio(left, make([]float32, len(left)))
		var s float64
		for _, v := range left {
			s += float64(v)
		}
		return s
	}
	if sum(0) == sum(0.7) {
		t.Error("feedback should change the output")
	}
}

func TestFMReleaseAndTremolo(t *testing.T) {
	params := DefaultFMParams()
	params.ReleaseSec = 0.01
	params.TremoloDepth = 0.5
	params.TremoloRate = 6
	f := NewFM("fm", 48000, params)
	if _, ok := AsNotePlayer(f); !ok {
		t.Fatal("FM should accept notes")
	}
	id := f.NotePlay(69, 127)
	if renderPeak(f, 4800) == 0 {
		t.Fatal("expected output")
	}
	f.NoteStop(id)
	renderPeak(f, 4800)
	if f.ActiveVoices() != 0 {
		t.Fatalf("voice still active after release: %d", f.ActiveVoices())
	}
	if renderPeak(f, 256) != 0 {
		t.Fatal("expected silence after release")
	}
}

func TestFMClampsParams(t *testing.T) {
	params := DefaultFMParams()
	params.Operators = 9
	params.Feedback = 3
	params.Ratios[2] = -1
	f := NewFM("fm", 48000, params)
	got := f.Params()
	if got.Operators != 4 || got.Feedback != 1 || got.Ratios[2] != 3 {
		t.Fatalf("params = %+v", got)
	}
}
