package synth

import (
	"math"
	"testing"
)

type silent struct{}

func (silent) Name() string { return "silent" }

func TestCapabilityChecks(t *testing.T) {
	p := NewPulse("lead", 48000, DefaultParams())
	if _, ok := AsSoftSynth(p); !ok {
		t.Fatal("Pulse should render audio")
	}
	if _, ok := AsNotePlayer(p); !ok {
		t.Fatal("Pulse should accept notes")
	}
	if _, ok := AsSoftSynth(silent{}); ok {
		t.Fatal("a bare Synth is not a SoftSynth")
	}
	if _, ok := AsNotePlayer(nil); ok {
		t.Fatal("nil has no capabilities")
	}
}

func TestPulseRendersCenteredAudio(t *testing.T) {
	for _, wave := range []Wave{WavePulse, WaveTriangle, WaveSaw, WaveNoise} {
		t.Run(wave.String(), func(t *testing.T) {
			params := DefaultParams()
			params.Wave = wave
			p := NewPulse("t", 48000, params)
			p.NotePlay(69, 100)

			left := make([]float32, 2048)
			right := make([]float32, 2048)
			p.RenderAudio(left, right)

			var energy float64
			for i := range left {
				if left[i] != right[i] {
					t.Fatalf("frame %d not centered: %v vs %v", i, left[i], right[i])
				}
				if math.Abs(float64(left[i])) > 1 {
					t.Fatalf("frame %d out of range: %v", i, left[i])
				}
				energy += float64(left[i] * left[i])
			}
			if energy == 0 {
				t.Fatal("expected audible output")
			}
		})
	}
}

func TestPulseSilentWithoutNotes(t *testing.T) {
	p := NewPulse("t", 48000, DefaultParams())
	left := []float32{1, 1, 1, 1}
	right := []float32{1, 1, 1, 1}
	p.RenderAudio(left, right)
	for i := range left {
		if left[i] != 0 || right[i] != 0 {
			t.Fatalf("frame %d = (%v, %v), want silence", i, left[i], right[i])
		}
	}
}

func TestPulseReleaseEndsVoice(t *testing.T) {
	params := DefaultParams()
	params.ReleaseSec = 0.01
	p := NewPulse("t", 48000, params)
	id := p.NotePlay(60, 127)
	buf := make([]float32, 4800)
	p.RenderAudio(buf, make([]float32, len(buf)))
	if p.ActiveVoices() != 1 {
		t.Fatalf("ActiveVoices() = %d, want 1", p.ActiveVoices())
	}
	p.NoteStop(id)
	p.RenderAudio(buf, make([]float32, len(buf)))
	if p.ActiveVoices() != 0 {
		t.Fatalf("voice still active after release: %d", p.ActiveVoices())
	}
}

func TestPulseVoiceStealing(t *testing.T) {
	params := DefaultParams()
	params.Voices = 2
	p := NewPulse("t", 48000, params)
	a := p.NotePlay(60, 100)
	b := p.NotePlay(64, 100)
	c := p.NotePlay(67, 100)
	if a == b || b == c || a == c {
		t.Fatalf("note ids should be unique: %d %d %d", a, b, c)
	}
	if p.ActiveVoices() != 2 {
		t.Fatalf("ActiveVoices() = %d, want 2", p.ActiveVoices())
	}
	p.AllNotesOff()
	buf := make([]float32, 48000)
	p.RenderAudio(buf, make([]float32, len(buf)))
	if p.ActiveVoices() != 0 {
		t.Fatalf("AllNotesOff left %d voices", p.ActiveVoices())
	}
}

func TestParseWave(t *testing.T) {
	if w, ok := ParseWave("Triangle"); !ok || w != WaveTriangle {
		t.Fatalf("ParseWave(Triangle) = %v, %v", w, ok)
	}
	if w, ok := ParseWave("fm"); ok || w != WavePulse {
		t.Fatalf("ParseWave(fm) = %v, %v", w, ok)
	}
}

func BenchmarkPulseRender(b *testing.B) {
	p := NewPulse("bench", 48000, DefaultParams())
	for n := 0; n < 8; n++ {
		p.NotePlay(48+n*3, 100)
	}
	left := make([]float32, 512)
	right := make([]float32, 512)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.RenderAudio(left, right)
	}
}
