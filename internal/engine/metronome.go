package engine

import "math"

const (
	clickMillis   = 30
	clickHz       = 1000
	accentHz      = 1500
	beatsPerBar   = 4
	defaultVolume = 0.5
)

// metronome adds a decaying sine click on every beat, pitched up on the
// first beat of each 4/4 bar. A click may span callbacks.
type metronome struct {
	enabled    bool
	volume     float32
	sampleRate int
	length     int
	remaining  int
	phase      float64
	step       float64
}

func newMetronome(sampleRate int) metronome {
	return metronome{
		volume:     defaultVolume,
		sampleRate: sampleRate,
		length:     max(sampleRate*clickMillis/1000, 1),
	}
}

func (m *metronome) mix(left, right []float32, pos Position) {
	if !m.enabled || m.sampleRate <= 0 {
		return
	}
	tm := pos.tempoMap()
	ppq := tm.PPQ()
	start, end := pos.Frame, pos.Frame+int64(len(left))
	i := 0
	for beat := max(pos.Tick, 0) / ppq; ; beat++ {
		f := secondsToFrame(tm.TicksToSeconds(beat*ppq), m.sampleRate)
		if f >= end {
			break
		}
		if f < start {
			continue
		}
		at := int(f - start)
		m.render(left, right, i, at)
		m.trigger(beat%beatsPerBar == 0)
		i = at
	}
	m.render(left, right, i, len(left))
}

func (m *metronome) trigger(accent bool) {
	hz := float64(clickHz)
	if accent {
		hz = accentHz
	}
	m.remaining = m.length
	m.phase = 0
	m.step = 2 * math.Pi * hz / float64(m.sampleRate)
}

func (m *metronome) render(left, right []float32, from, to int) {
	for i := from; i < to && m.remaining > 0; i++ {
		env := float32(m.remaining) / float32(m.length)
		s := float32(math.Sin(m.phase)) * env * m.volume
		left[i] += s
		right[i] += s
		m.phase += m.step
		m.remaining--
	}
}

func (m *metronome) reset() {
	m.remaining = 0
	m.phase = 0
}
