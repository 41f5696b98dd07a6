package tempo

import (
	"math"
	"testing"
)

func TestTrackAddEventReplacesSameTick(t *testing.T) {
	tr := NewTrack(120)
	tr.AddEvent(Event{Tick: 960, BPM: 90})
	tr.AddEvent(Event{Tick: 480, BPM: 100})
	tr.AddEvent(Event{Tick: 960, BPM: 140, Interp: Linear})

	events := tr.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %#v", len(events), events)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Tick <= events[i-1].Tick {
			t.Fatalf("events out of order: %#v", events)
		}
	}
	if events[2].BPM != 140 || events[2].Interp != Linear {
		t.Fatalf("expected replaced event at 960, got %#v", events[2])
	}
}

func TestTrackKeepsEventAtStart(t *testing.T) {
	tr := NewTrack(120)
	if tr.RemoveEvent(0) {
		t.Fatal("removing the only event at tick 0 should fail")
	}
	tr.AddEvent(Event{Tick: 100, BPM: 80})
	if !tr.RemoveEvent(100) {
		t.Fatal("expected removal of event at 100")
	}
	if tr.RemoveEvent(55) {
		t.Fatal("removing a missing event should fail")
	}
	if tr.Len() != 1 {
		t.Fatalf("expected one event left, got %d", tr.Len())
	}
}

func TestTempoAtTick(t *testing.T) {
	t.Parallel()

	tr := NewTrack(100)
	tr.AddEvent(Event{Tick: 0, BPM: 100, Interp: Linear})
	tr.AddEvent(Event{Tick: 1000, BPM: 200})
	tr.AddEvent(Event{Tick: 2000, BPM: 60})
	m := New(480, 0, tr)

	tests := []struct {
		name string
		tick int
		want float64
	}{
		{"ramp start", 0, 100},
		{"ramp quarter", 250, 125},
		{"ramp middle", 500, 150},
		{"step event", 1000, 200},
		{"step holds", 1999, 200},
		{"last event", 5000, 60},
		{"before first", -10, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.TempoAtTick(tt.tick); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("TempoAtTick(%d) = %v, want %v", tt.tick, got, tt.want)
			}
		})
	}
}

func TestTempoAtTickLinearIsBounded(t *testing.T) {
	tr := NewTrack(90)
	tr.AddEvent(Event{Tick: 0, BPM: 90, Interp: Linear})
	tr.AddEvent(Event{Tick: 960, BPM: 180})
	m := New(480, 0, tr)
	for tick := 0; tick <= 960; tick += 7 {
		bpm := m.TempoAtTick(tick)
		if bpm < 90 || bpm > 180 {
			t.Fatalf("tempo at %d = %v escapes [90,180]", tick, bpm)
		}
	}
}

func TestTempoAtTickEmptyTrackUsesDefault(t *testing.T) {
	tr := &Track{active: true}
	m := New(480, 0, tr)
	if got := m.TempoAtTick(100); got != DefaultBPM {
		t.Fatalf("expected default tempo for empty automation, got %v", got)
	}
}

func TestFixedTempoConversion(t *testing.T) {
	m := New(480, 500000, nil)
	if got := m.TicksToSeconds(480); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("one quarter at 120 BPM = %v s, want 0.5", got)
	}
	if got := m.SecondsToTicks(2); got != 1920 {
		t.Fatalf("2 s at 120 BPM = %d ticks, want 1920", got)
	}
}

func TestFixedTempoRoundTrip(t *testing.T) {
	t.Parallel()

	maps := []*Map{
		New(480, 500000, nil),
		New(96, 428571, nil),
		Fixed(960, 133.7),
	}
	for _, m := range maps {
		for tick := 0; tick < 200000; tick += 997 {
			back := m.SecondsToTicks(m.TicksToSeconds(tick))
			if d := back - tick; d < -1 || d > 1 {
				t.Fatalf("round trip %d -> %d (ppq %d)", tick, back, m.PPQ())
			}
		}
	}
}

func TestInactiveTrackUsesFixedTempo(t *testing.T) {
	tr := NewTrack(60)
	tr.SetActive(false)
	m := New(480, 500000, tr)
	if got := m.TempoAtTick(0); got != 120 {
		t.Fatalf("inactive automation should fall back to 120, got %v", got)
	}
	tr.SetActive(true)
	if got := m.TempoAtTick(0); got != 60 {
		t.Fatalf("active automation should give 60, got %v", got)
	}
}

func TestStepAutomationSeconds(t *testing.T) {
	tr := NewTrack(120)
	tr.AddEvent(Event{Tick: 960, BPM: 60})
	m := New(480, 0, tr)

	// two quarters at 120 then two quarters at 60
	if got := m.TicksToSeconds(1920); math.Abs(got-3.0) > 1e-9 {
		t.Fatalf("TicksToSeconds(1920) = %v, want 3", got)
	}
	if got := m.SecondsToTicks(3.0); got != 1920 {
		t.Fatalf("SecondsToTicks(3) = %d, want 1920", got)
	}
	if got := m.SecondsToTicks(0.5); got != 480 {
		t.Fatalf("SecondsToTicks(0.5) = %d, want 480", got)
	}
}

func TestLinearSegmentUsesAverageTempo(t *testing.T) {
	tr := NewTrack(100)
	tr.AddEvent(Event{Tick: 0, BPM: 100, Interp: Linear})
	tr.AddEvent(Event{Tick: 480, BPM: 200})
	m := New(480, 0, tr)

	// a full quarter ramp averages 150 BPM
	want := 60.0 / 150.0
	if got := m.TicksToSeconds(480); math.Abs(got-want) > 1e-9 {
		t.Fatalf("TicksToSeconds(480) = %v, want %v", got, want)
	}
	// the inverse assumes the segment start tempo, so it falls short
	back := m.SecondsToTicks(want)
	if back != 320 {
		t.Fatalf("SecondsToTicks(%v) = %d, want 320", want, back)
	}
}

func TestLeadingSegmentBeforeFirstEvent(t *testing.T) {
	tr := &Track{events: []Event{{Tick: 480, BPM: 60}}, active: true}
	m := New(480, 0, tr)
	if got := m.TicksToSeconds(480); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected first event tempo before it, got %v", got)
	}
	if got := m.SecondsToTicks(1); got != 480 {
		t.Fatalf("SecondsToTicks(1) = %d, want 480", got)
	}
}

func TestInvalidParametersFallBack(t *testing.T) {
	m := New(0, -5, nil)
	if m.PPQ() != DefaultPPQ {
		t.Fatalf("ppq fallback = %d, want %d", m.PPQ(), DefaultPPQ)
	}
	if got := m.TempoAtTick(0); got != DefaultBPM {
		t.Fatalf("tempo fallback = %v, want %v", got, DefaultBPM)
	}
	tr := NewTrack(-40)
	if got := tr.Events()[0].BPM; got != DefaultBPM {
		t.Fatalf("non-positive bpm should become %v, got %v", DefaultBPM, got)
	}
}

func BenchmarkTicksToSeconds(b *testing.B) {
	tr := NewTrack(120)
	for i := 1; i < 64; i++ {
		tr.AddEvent(Event{Tick: i * 480, BPM: 90 + float64(i), Interp: Interpolation(i % 2)})
	}
	m := New(480, 0, tr)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.TicksToSeconds(30000)
	}
}

func TestTickAtInvertsLinearRamp(t *testing.T) {
	tr := NewTrack(100)
	tr.AddEvent(Event{Tick: 0, BPM: 100, Interp: Linear})
	tr.AddEvent(Event{Tick: 480, BPM: 200})
	m := New(480, 0, tr)

	for _, tick := range []int{0, 1, 240, 479, 480, 960, 4800, 48000} {
		if got := m.TickAt(m.TicksToSeconds(tick)); got != tick {
			t.Errorf("TickAt(TicksToSeconds(%d)) = %d", tick, got)
		}
		// frame-rounded seconds still land on the same tick
		frame := math.Round(m.TicksToSeconds(tick) * 48000)
		if got := m.TickAt(frame / 48000); got != tick {
			t.Errorf("tick %d via frame %v = %d", tick, frame, got)
		}
	}
	// SecondsToTicks keeps inverting the ramp at its starting tempo
	if got := m.SecondsToTicks(m.TicksToSeconds(960)); got == 960 {
		t.Fatal("SecondsToTicks should stay an approximation for linear ramps")
	}
}

func TestTickAtFixedTempoMatchesSecondsToTicks(t *testing.T) {
	m := Fixed(480, 90)
	for _, s := range []float64{0, 0.001, 1.25, 60} {
		if m.TickAt(s) != m.SecondsToTicks(s) {
			t.Errorf("TickAt(%v) = %d, SecondsToTicks = %d", s, m.TickAt(s), m.SecondsToTicks(s))
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tr := NewTrack(120)
	m := New(480, 0, tr.Clone())
	tr.AddEvent(Event{Tick: 0, BPM: 60})
	tr.SetActive(false)
	if got := m.TempoAtTick(0); got != 120 {
		t.Fatalf("clone followed the original: %v", got)
	}
	if (*Track)(nil).Clone() != nil {
		t.Fatal("nil clone should be nil")
	}
}
