package tempo

import (
	"math"
	"sort"
)

const (
	// DefaultBPM is used whenever a tempo is missing or not positive.
	DefaultBPM = 120.0
	// DefaultPPQ is used when a sequence reports a resolution that is not positive.
	DefaultPPQ = 480
	// DefaultMicrosPerQuarter corresponds to DefaultBPM.
	DefaultMicrosPerQuarter = 500000
)

// Interpolation selects how the tempo moves from one event to the next.
type Interpolation int

const (
	// Step holds the event tempo until the next event.
	Step Interpolation = iota
	// Linear ramps from the event tempo to the next event's tempo.
	Linear
)

func (i Interpolation) String() string {
	if i == Linear {
		return "linear"
	}
	return "step"
}

// Event is a tempo change at Tick. Linear events ramp towards the next event.
type Event struct {
	Tick   int
	BPM    float64
	Interp Interpolation
}

// Track holds the tempo automation of a sequence. Events are kept sorted by
// tick with at most one event per tick.
type Track struct {
	events []Event
	active bool
}

// NewTrack returns an active track holding a single event at tick 0.
func NewTrack(bpm float64) *Track {
	return &Track{
		events: []Event{{Tick: 0, BPM: sanitizeBPM(bpm)}},
		active: true,
	}
}

// Active reports whether the automation overrides the fixed tempo.
func (t *Track) Active() bool { return t != nil && t.active }

// SetActive switches between the automation and the fixed tempo.
func (t *Track) SetActive(active bool) { t.active = active }

// Clone returns an independent copy. Maps built on a clone are unaffected by
// later edits of t.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	return &Track{events: t.Events(), active: t.active}
}

// Events returns a copy of the automation events.
func (t *Track) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

func (t *Track) Len() int { return len(t.events) }

// AddEvent inserts ev keeping tick order. An event already at ev.Tick is replaced.
func (t *Track) AddEvent(ev Event) {
	ev.BPM = sanitizeBPM(ev.BPM)
	if ev.Tick < 0 {
		ev.Tick = 0
	}
	i := sort.Search(len(t.events), func(i int) bool { return t.events[i].Tick >= ev.Tick })
	if i < len(t.events) && t.events[i].Tick == ev.Tick {
		t.events[i] = ev
		return
	}
	t.events = append(t.events, Event{})
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = ev
}

// RemoveEvent deletes the event at tick. The last event at or before tick 0
// cannot be removed; false is returned in that case or when no event exists.
func (t *Track) RemoveEvent(tick int) bool {
	i := sort.Search(len(t.events), func(i int) bool { return t.events[i].Tick >= tick })
	if i >= len(t.events) || t.events[i].Tick != tick {
		return false
	}
	if i == 0 && (len(t.events) == 1 || t.events[1].Tick > 0) {
		return false
	}
	t.events = append(t.events[:i], t.events[i+1:]...)
	return true
}

// Map converts between ticks and seconds for one sequence. With an inactive
// or missing track it uses the fixed microsPerQuarter tempo.
type Map struct {
	ppq              int
	microsPerQuarter int
	track            *Track
}

// New returns a map for a sequence at ppq with a fixed tempo of
// microsPerQuarter and optional automation. Values that are not positive
// fall back to DefaultPPQ and DefaultMicrosPerQuarter. The map reads track
// directly; pass a Clone when track may change while the map is in use.
func New(ppq int, microsPerQuarter int, track *Track) *Map {
	if ppq <= 0 {
		ppq = DefaultPPQ
	}
	if microsPerQuarter <= 0 {
		microsPerQuarter = DefaultMicrosPerQuarter
	}
	return &Map{ppq: ppq, microsPerQuarter: microsPerQuarter, track: track}
}

// Fixed returns a map without automation running at bpm.
func Fixed(ppq int, bpm float64) *Map {
	return New(ppq, int(math.Round(60e6/sanitizeBPM(bpm))), nil)
}

func (m *Map) PPQ() int { return m.ppq }

func (m *Map) automated() bool {
	return m.track.Active() && len(m.track.events) > 0
}

// FixedBPM reports the scalar tempo used when automation is off.
func (m *Map) FixedBPM() float64 {
	return 60e6 / float64(m.microsPerQuarter)
}

// TempoAtTick returns the tempo in effect at tick.
func (m *Map) TempoAtTick(tick int) float64 {
	if !m.automated() {
		return m.FixedBPM()
	}
	return bpmAt(m.track.events, tick)
}

func bpmAt(events []Event, tick int) float64 {
	if len(events) == 0 {
		return DefaultBPM
	}
	i := sort.Search(len(events), func(i int) bool { return events[i].Tick > tick }) - 1
	if i < 0 {
		return events[0].BPM
	}
	ev := events[i]
	if ev.Interp != Linear || i+1 >= len(events) {
		return ev.BPM
	}
	next := events[i+1]
	span := next.Tick - ev.Tick
	if span <= 0 {
		return ev.BPM
	}
	t := float64(tick-ev.Tick) / float64(span)
	t = math.Max(0, math.Min(1, t))
	return ev.BPM + (next.BPM-ev.BPM)*t
}

func (m *Map) secondsPerTick(bpm float64) float64 {
	return 60.0 / (sanitizeBPM(bpm) * float64(m.ppq))
}

// TicksToSeconds integrates the tempo up to tick. Linear ramps use the mean
// of the start and end tempo over the covered range.
func (m *Map) TicksToSeconds(tick int) float64 {
	if tick <= 0 {
		return 0
	}
	if !m.automated() {
		return float64(tick) * float64(m.microsPerQuarter) / float64(m.ppq) / 1e6
	}
	events := m.track.events
	var seconds float64
	if first := events[0].Tick; first > 0 {
		lead := min(first, tick)
		seconds += float64(lead) * m.secondsPerTick(events[0].BPM)
	}
	for i, ev := range events {
		if ev.Tick >= tick {
			break
		}
		end := tick
		if i+1 < len(events) && events[i+1].Tick < tick {
			end = events[i+1].Tick
		}
		span := end - ev.Tick
		if span <= 0 {
			continue
		}
		bpm := ev.BPM
		if ev.Interp == Linear && i+1 < len(events) {
			bpm = (ev.BPM + bpmAt(events, end)) / 2
		}
		seconds += float64(span) * m.secondsPerTick(bpm)
	}
	return seconds
}

// SecondsToTicks walks the tempo segments assuming each one runs at its
// starting tempo. For linear ramps this is not an exact inverse of
// TicksToSeconds.
func (m *Map) SecondsToTicks(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	if !m.automated() {
		return int(math.Round(seconds * 1e6 * float64(m.ppq) / float64(m.microsPerQuarter)))
	}
	events := m.track.events
	var elapsed float64
	if first := events[0].Tick; first > 0 {
		lead := float64(first) * m.secondsPerTick(events[0].BPM)
		if seconds <= lead {
			return int(math.Round(seconds / m.secondsPerTick(events[0].BPM)))
		}
		elapsed = lead
	}
	for i, ev := range events {
		spt := m.secondsPerTick(ev.BPM)
		if i+1 < len(events) {
			segment := float64(events[i+1].Tick-ev.Tick) * spt
			if elapsed+segment < seconds {
				elapsed += segment
				continue
			}
		}
		return ev.Tick + int(math.Round((seconds-elapsed)/spt))
	}
	return 0
}

// TickAt returns the tick nearest to seconds using the same integration as
// TicksToSeconds, so TickAt(TicksToSeconds(t)) == t on every tempo map.
func (m *Map) TickAt(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	if !m.automated() {
		return m.SecondsToTicks(seconds)
	}
	hi := max(m.SecondsToTicks(seconds), 1)
	for m.TicksToSeconds(hi) <= seconds {
		hi *= 2
	}
	// largest lo with TicksToSeconds(lo) <= seconds
	lo := sort.Search(hi, func(t int) bool { return m.TicksToSeconds(t) > seconds }) - 1
	if seconds-m.TicksToSeconds(lo) > m.TicksToSeconds(lo+1)-seconds {
		return lo + 1
	}
	return lo
}

func sanitizeBPM(bpm float64) float64 {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return DefaultBPM
	}
	return bpm
}
