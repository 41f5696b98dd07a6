// Package model holds the sequencer data the render engine reads: sequences
// with their tracks and notes, tempo automation and the arrangement with its
// clips. Entities live in a Project arena and refer to each other by ID.
package model

import (
	"math"
	"slices"

	"github.com/cbegin/seqmix/internal/synth"
	"github.com/cbegin/seqmix/internal/tempo"
)

// Note is a MIDI note in sequence ticks.
type Note struct {
	ID       int
	Key      int
	Velocity int
	Start    int
	Length   int
}

func (n Note) End() int { return n.Start + n.Length }

// Track is one instrument lane of a sequence. A tempo track carries tempo
// automation instead of notes and never renders audio.
type Track struct {
	ID         int
	SequenceID int
	Name       string
	Channel    int
	Muted      bool
	Solo       bool
	Visible    bool
	Notes      []Note // sorted by Start
	Synth      synth.Synth

	tempo *tempo.Track
}

func (t *Track) IsTempo() bool { return t.tempo != nil }

// Tempo returns the automation of a tempo track, nil otherwise.
func (t *Track) Tempo() *tempo.Track { return t.tempo }

// Sequence owns its tracks. Without an active tempo track it plays at the
// fixed MicrosPerQuarter tempo.
type Sequence struct {
	ID               int
	Name             string
	PPQ              int
	MicrosPerQuarter int

	tracks []*Track
}

// Tracks returns the sequence tracks in order. The slice must not be modified.
func (s *Sequence) Tracks() []*Track { return s.tracks }

func (s *Sequence) Track(id int) *Track {
	for _, t := range s.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Sequence) HasTrack(id int) bool { return s.Track(id) != nil }

// TempoTrack returns the sequence tempo track, or nil.
func (s *Sequence) TempoTrack() *Track {
	for _, t := range s.tracks {
		if t.IsTempo() {
			return t
		}
	}
	return nil
}

// BPM is the fixed tempo of the sequence.
func (s *Sequence) BPM() float64 {
	if s.MicrosPerQuarter <= 0 {
		return tempo.DefaultBPM
	}
	return 60e6 / float64(s.MicrosPerQuarter)
}

// TempoMap returns a snapshot of the tick/second conversion for the
// sequence. Later tempo edits need a new call.
func (s *Sequence) TempoMap() *tempo.Map {
	var automation *tempo.Track
	if tt := s.TempoTrack(); tt != nil {
		automation = tt.tempo.Clone()
	}
	return tempo.New(s.PPQ, s.MicrosPerQuarter, automation)
}

// AnySolo reports whether any non-tempo track is soloed.
func (s *Sequence) AnySolo() bool {
	for _, t := range s.tracks {
		if t.Solo && !t.IsTempo() {
			return true
		}
	}
	return false
}

// LengthTicks is the end of the last note.
func (s *Sequence) LengthTicks() int {
	end := 0
	for _, t := range s.tracks {
		for _, n := range t.Notes {
			end = max(end, n.End())
		}
	}
	return end
}

// MidiClip places a sequence on an arrangement track. OffsetTicks skips into
// the sequence.
type MidiClip struct {
	ID            int
	SequenceID    int
	StartTick     int
	DurationTicks int
	OffsetTicks   int
	FadeInTicks   int
	FadeOutTicks  int
	Muted         bool
}

func (c *MidiClip) EndTick() int { return c.StartTick + c.DurationTicks }

func (c *MidiClip) ContainsTick(tick int) bool {
	return c.StartTick <= tick && tick < c.EndTick()
}

// SequenceTick maps an arrangement tick inside the clip to the sequence tick.
func (c *MidiClip) SequenceTick(tick int) int {
	return tick - c.StartTick + c.OffsetTicks
}

// AudioClip places an audio resource on an arrangement track.
// ClipLengthSamples limits how much of the resource is used; 0 means all of it.
type AudioClip struct {
	ID                int
	ResourceID        int
	StartTick         int
	DurationTicks     int
	OffsetSamples     int64
	OffsetTicks       int
	ClipLengthSamples int64
	FadeInTicks       int
	FadeOutTicks      int
	Muted             bool
	Looping           bool
	Gain              float32
}

func (c *AudioClip) EndTick() int { return c.StartTick + c.DurationTicks }

func (c *AudioClip) ContainsTick(tick int) bool {
	return c.StartTick <= tick && tick < c.EndTick()
}

// Overlaps reports whether the clip intersects [start, end).
func (c *AudioClip) Overlaps(start, end int) bool {
	return c.StartTick < end && start < c.EndTick()
}

// ArrangementTrack is a mixing lane of the arrangement. Volume is linear,
// Pan is in [-1, 1].
type ArrangementTrack struct {
	ID         int
	Name       string
	Volume     float32
	Pan        float32
	Muted      bool
	Solo       bool
	MidiClips  []*MidiClip  // sorted by StartTick
	AudioClips []*AudioClip // sorted by StartTick
}

// ActiveMidiClipAt returns the first unmuted MIDI clip containing tick.
func (t *ArrangementTrack) ActiveMidiClipAt(tick int) *MidiClip {
	for _, c := range t.MidiClips {
		if c.StartTick > tick {
			break
		}
		if !c.Muted && c.ContainsTick(tick) {
			return c
		}
	}
	return nil
}

// AudioClipsIn returns the unmuted audio clips intersecting [start, end).
func (t *ArrangementTrack) AudioClipsIn(start, end int) []*AudioClip {
	var out []*AudioClip
	for _, c := range t.AudioClips {
		if c.StartTick >= end {
			break
		}
		if !c.Muted && c.Overlaps(start, end) {
			out = append(out, c)
		}
	}
	return out
}

func (t *ArrangementTrack) LengthTicks() int {
	end := 0
	for _, c := range t.MidiClips {
		end = max(end, c.EndTick())
	}
	for _, c := range t.AudioClips {
		end = max(end, c.EndTick())
	}
	return end
}

type Arrangement struct {
	Tracks []*ArrangementTrack
}

func (a *Arrangement) AnySolo() bool {
	for _, t := range a.Tracks {
		if t.Solo {
			return true
		}
	}
	return false
}

// Audible applies mute and solo: with any track soloed only soloed tracks
// play.
func (a *Arrangement) Audible(t *ArrangementTrack, anySolo bool) bool {
	if t == nil || t.Muted {
		return false
	}
	return !anySolo || t.Solo
}

func (a *Arrangement) Track(id int) *ArrangementTrack {
	for _, t := range a.Tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (a *Arrangement) LengthTicks() int {
	end := 0
	for _, t := range a.Tracks {
		end = max(end, t.LengthTicks())
	}
	return end
}

func microsForBPM(bpm float64) int {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return tempo.DefaultMicrosPerQuarter
	}
	return int(math.Round(60e6 / bpm))
}

func insertSorted[T any](s []T, v T, less func(a, b T) bool) []T {
	i, _ := slices.BinarySearchFunc(s, v, func(a, b T) int {
		if less(a, b) {
			return -1
		}
		return 1
	})
	return slices.Insert(s, i, v)
}
