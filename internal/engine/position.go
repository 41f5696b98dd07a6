package engine

import (
	"math"

	"github.com/cbegin/seqmix/internal/tempo"
)

// Position describes where on the timeline a render callback starts.
// Tick selects the active clips; Frame places clip and fade windows in
// samples. BPM and PPQ are the tempo in effect at Tick, used for the
// callback-local tick/sample conversions. A nil Tempo means a fixed tempo
// of BPM.
type Position struct {
	Tick  int
	Frame int64
	BPM   float64
	PPQ   int
	Tempo *tempo.Map
}

// At returns the position of timeline frame on tm.
func At(tm *tempo.Map, frame int64, sampleRate int) Position {
	tick := 0
	if sampleRate > 0 {
		tick = tm.TickAt(float64(frame) / float64(sampleRate))
	}
	return Position{
		Tick:  tick,
		Frame: frame,
		BPM:   tm.TempoAtTick(tick),
		PPQ:   tm.PPQ(),
		Tempo: tm,
	}
}

// AtTick returns the position of tick on tm.
func AtTick(tm *tempo.Map, tick int, sampleRate int) Position {
	return Position{
		Tick:  tick,
		Frame: secondsToFrame(tm.TicksToSeconds(tick), sampleRate),
		BPM:   tm.TempoAtTick(tick),
		PPQ:   tm.PPQ(),
		Tempo: tm,
	}
}

func (p Position) tempoMap() *tempo.Map {
	if p.Tempo != nil {
		return p.Tempo
	}
	return tempo.Fixed(p.PPQ, p.BPM)
}

func secondsToFrame(seconds float64, sampleRate int) int64 {
	return int64(math.Round(seconds * float64(sampleRate)))
}
