package model

import (
	"slices"
	"sync"

	"github.com/cbegin/seqmix/internal/synth"
	"github.com/cbegin/seqmix/internal/tempo"
)

// Project is the arena owning sequences and the arrangement. Mutations go
// through Project methods, which take the write lock and notify observers.
// Accessors do not lock: readers on other goroutines (the render callback)
// wrap their reads in Read.
type Project struct {
	mu          sync.RWMutex
	ids         *IDGen
	observers   Observers
	ppq         int
	sequences   []*Sequence
	activeID    int
	arrangement Arrangement
}

// NewProject returns an empty project whose sequences use ppq ticks per
// quarter note. A nil ids gets a fresh generator.
func NewProject(ids *IDGen, ppq int) *Project {
	if ids == nil {
		ids = NewIDGen()
	}
	if ppq <= 0 {
		ppq = tempo.DefaultPPQ
	}
	return &Project{ids: ids, ppq: ppq}
}

func (p *Project) PPQ() int                  { return p.ppq }
func (p *Project) IDs() *IDGen               { return p.ids }
func (p *Project) Observers() *Observers     { return &p.observers }
func (p *Project) Arrangement() *Arrangement { return &p.arrangement }

// Read runs fn holding the read lock.
func (p *Project) Read(fn func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn()
}

func (p *Project) mutate(c Change, fn func() bool) bool {
	p.mu.Lock()
	ok := fn()
	p.mu.Unlock()
	if ok {
		p.observers.Notify(c)
	}
	return ok
}

func (p *Project) Sequences() []*Sequence { return p.sequences }

func (p *Project) Sequence(id int) *Sequence {
	for _, s := range p.sequences {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ActiveSequence returns the sequence played in sequence mode, or nil.
func (p *Project) ActiveSequence() *Sequence { return p.Sequence(p.activeID) }

// Track finds a track in any sequence.
func (p *Project) Track(id int) *Track {
	for _, s := range p.sequences {
		if t := s.Track(id); t != nil {
			return t
		}
	}
	return nil
}

// AddSequence creates a sequence at a fixed bpm. The first sequence becomes
// the active one.
func (p *Project) AddSequence(name string, bpm float64) *Sequence {
	s := &Sequence{
		ID:               p.ids.Next(),
		Name:             name,
		PPQ:              p.ppq,
		MicrosPerQuarter: microsForBPM(bpm),
	}
	p.mutate(Change{Kind: ChangeSequence, ID: s.ID}, func() bool {
		p.sequences = append(p.sequences, s)
		if p.activeID == 0 {
			p.activeID = s.ID
		}
		return true
	})
	return s
}

// RemoveSequence deletes a sequence and the MIDI clips referencing it.
func (p *Project) RemoveSequence(id int) bool {
	return p.mutate(Change{Kind: ChangeSequence, ID: id}, func() bool {
		i := slices.IndexFunc(p.sequences, func(s *Sequence) bool { return s.ID == id })
		if i < 0 {
			return false
		}
		p.sequences = slices.Delete(p.sequences, i, i+1)
		if p.activeID == id {
			p.activeID = 0
			if len(p.sequences) > 0 {
				p.activeID = p.sequences[0].ID
			}
		}
		for _, at := range p.arrangement.Tracks {
			at.MidiClips = slices.DeleteFunc(at.MidiClips, func(c *MidiClip) bool { return c.SequenceID == id })
		}
		return true
	})
}

func (p *Project) SetActiveSequence(id int) bool {
	return p.mutate(Change{Kind: ChangeActiveSequence, ID: id}, func() bool {
		if p.Sequence(id) == nil {
			return false
		}
		p.activeID = id
		return true
	})
}

// SetSequenceBPM changes the fixed tempo used without active automation.
func (p *Project) SetSequenceBPM(id int, bpm float64) bool {
	return p.mutate(Change{Kind: ChangeTempo, ID: id}, func() bool {
		s := p.Sequence(id)
		if s == nil {
			return false
		}
		s.MicrosPerQuarter = microsForBPM(bpm)
		return true
	})
}

// AddTrack appends an instrument track to a sequence. It returns nil for an
// unknown sequence.
func (p *Project) AddTrack(seqID int, name string, channel int, s synth.Synth) *Track {
	t := &Track{
		ID:         p.ids.Next(),
		SequenceID: seqID,
		Name:       name,
		Channel:    channel,
		Visible:    true,
		Synth:      s,
	}
	ok := p.mutate(Change{Kind: ChangeTrack, ID: t.ID}, func() bool {
		seq := p.Sequence(seqID)
		if seq == nil {
			return false
		}
		seq.tracks = append(seq.tracks, t)
		return true
	})
	if !ok {
		return nil
	}
	return t
}

// AddTempoTrack gives a sequence tempo automation starting at its fixed
// tempo. A sequence has at most one tempo track; the existing one is
// returned.
func (p *Project) AddTempoTrack(seqID int) *Track {
	var t *Track
	p.mutate(Change{Kind: ChangeTempo, ID: seqID}, func() bool {
		seq := p.Sequence(seqID)
		if seq == nil {
			return false
		}
		if t = seq.TempoTrack(); t != nil {
			return false
		}
		t = &Track{
			ID:         p.ids.Next(),
			SequenceID: seqID,
			Name:       "Tempo",
			Visible:    true,
			tempo:      tempo.NewTrack(seq.BPM()),
		}
		seq.tracks = append(seq.tracks, t)
		return true
	})
	return t
}

func (p *Project) RemoveTrack(id int) bool {
	return p.mutate(Change{Kind: ChangeTrack, ID: id}, func() bool {
		for _, s := range p.sequences {
			if i := slices.IndexFunc(s.tracks, func(t *Track) bool { return t.ID == id }); i >= 0 {
				s.tracks = slices.Delete(s.tracks, i, i+1)
				return true
			}
		}
		return false
	})
}

func (p *Project) updateTrack(id int, kind ChangeKind, fn func(*Track)) bool {
	return p.mutate(Change{Kind: kind, ID: id}, func() bool {
		t := p.Track(id)
		if t == nil {
			return false
		}
		fn(t)
		return true
	})
}

func (p *Project) SetTrackMuted(id int, muted bool) bool {
	return p.updateTrack(id, ChangeTrack, func(t *Track) { t.Muted = muted })
}

func (p *Project) SetTrackSolo(id int, solo bool) bool {
	return p.updateTrack(id, ChangeTrack, func(t *Track) { t.Solo = solo })
}

func (p *Project) SetTrackVisible(id int, visible bool) bool {
	return p.updateTrack(id, ChangeTrack, func(t *Track) { t.Visible = visible })
}

func (p *Project) SetTrackSynth(id int, s synth.Synth) bool {
	return p.updateTrack(id, ChangeTrack, func(t *Track) { t.Synth = s })
}

// AddNote inserts n into a track keeping start order and returns the note
// ID, or 0 when the track does not exist or is a tempo track.
func (p *Project) AddNote(trackID int, n Note) int {
	id := 0
	p.mutate(Change{Kind: ChangeNotes, ID: trackID}, func() bool {
		t := p.Track(trackID)
		if t == nil || t.IsTempo() {
			return false
		}
		if n.ID == 0 {
			n.ID = p.ids.Next()
		} else {
			p.ids.Observe(n.ID)
		}
		t.Notes = insertSorted(t.Notes, n, func(a, b Note) bool { return a.Start < b.Start })
		id = n.ID
		return true
	})
	return id
}

func (p *Project) RemoveNote(trackID, noteID int) bool {
	return p.mutate(Change{Kind: ChangeNotes, ID: trackID}, func() bool {
		t := p.Track(trackID)
		if t == nil {
			return false
		}
		i := slices.IndexFunc(t.Notes, func(n Note) bool { return n.ID == noteID })
		if i < 0 {
			return false
		}
		t.Notes = slices.Delete(t.Notes, i, i+1)
		return true
	})
}

func (p *Project) tempoTrack(seqID int) *tempo.Track {
	seq := p.Sequence(seqID)
	if seq == nil {
		return nil
	}
	if t := seq.TempoTrack(); t != nil {
		return t.tempo
	}
	return nil
}

// SetTempoActive toggles between tempo automation and the fixed tempo.
func (p *Project) SetTempoActive(seqID int, active bool) bool {
	return p.mutate(Change{Kind: ChangeTempo, ID: seqID}, func() bool {
		tt := p.tempoTrack(seqID)
		if tt == nil {
			return false
		}
		tt.SetActive(active)
		return true
	})
}

func (p *Project) AddTempoEvent(seqID int, ev tempo.Event) bool {
	return p.mutate(Change{Kind: ChangeTempo, ID: seqID}, func() bool {
		tt := p.tempoTrack(seqID)
		if tt == nil {
			return false
		}
		tt.AddEvent(ev)
		return true
	})
}

func (p *Project) RemoveTempoEvent(seqID int, tick int) bool {
	return p.mutate(Change{Kind: ChangeTempo, ID: seqID}, func() bool {
		tt := p.tempoTrack(seqID)
		return tt != nil && tt.RemoveEvent(tick)
	})
}

// AddArrangementTrack appends a lane at unity volume, centered.
func (p *Project) AddArrangementTrack(name string) *ArrangementTrack {
	t := &ArrangementTrack{ID: p.ids.Next(), Name: name, Volume: 1}
	p.mutate(Change{Kind: ChangeArrangementTrack, ID: t.ID}, func() bool {
		p.arrangement.Tracks = append(p.arrangement.Tracks, t)
		return true
	})
	return t
}

func (p *Project) RemoveArrangementTrack(id int) bool {
	return p.mutate(Change{Kind: ChangeArrangementTrack, ID: id}, func() bool {
		n := len(p.arrangement.Tracks)
		p.arrangement.Tracks = slices.DeleteFunc(p.arrangement.Tracks, func(t *ArrangementTrack) bool { return t.ID == id })
		return len(p.arrangement.Tracks) != n
	})
}

func (p *Project) updateArrangementTrack(id int, fn func(*ArrangementTrack)) bool {
	return p.mutate(Change{Kind: ChangeArrangementTrack, ID: id}, func() bool {
		t := p.arrangement.Track(id)
		if t == nil {
			return false
		}
		fn(t)
		return true
	})
}

func (p *Project) SetArrangementTrackVolume(id int, volume float32) bool {
	return p.updateArrangementTrack(id, func(t *ArrangementTrack) { t.Volume = max(volume, 0) })
}

// SetArrangementTrackPan sets pan clamped to [-1, 1].
func (p *Project) SetArrangementTrackPan(id int, pan float32) bool {
	return p.updateArrangementTrack(id, func(t *ArrangementTrack) { t.Pan = max(-1, min(pan, 1)) })
}

func (p *Project) SetArrangementTrackMuted(id int, muted bool) bool {
	return p.updateArrangementTrack(id, func(t *ArrangementTrack) { t.Muted = muted })
}

func (p *Project) SetArrangementTrackSolo(id int, solo bool) bool {
	return p.updateArrangementTrack(id, func(t *ArrangementTrack) { t.Solo = solo })
}

// AddMidiClip places c on an arrangement track and returns its ID, or 0 when
// the track or the referenced sequence is unknown.
func (p *Project) AddMidiClip(trackID int, c MidiClip) int {
	id := 0
	p.mutate(Change{Kind: ChangeClip, ID: trackID}, func() bool {
		at := p.arrangement.Track(trackID)
		if at == nil || p.Sequence(c.SequenceID) == nil {
			return false
		}
		c.ID = p.ids.Next()
		clip := &c
		at.MidiClips = insertSorted(at.MidiClips, clip, func(a, b *MidiClip) bool { return a.StartTick < b.StartTick })
		id = c.ID
		return true
	})
	return id
}

// AddAudioClip places c on an arrangement track and returns its ID, or 0 for
// an unknown track. A zero Gain is taken as unity.
func (p *Project) AddAudioClip(trackID int, c AudioClip) int {
	id := 0
	p.mutate(Change{Kind: ChangeClip, ID: trackID}, func() bool {
		at := p.arrangement.Track(trackID)
		if at == nil {
			return false
		}
		c.ID = p.ids.Next()
		if c.Gain == 0 {
			c.Gain = 1
		}
		clip := &c
		at.AudioClips = insertSorted(at.AudioClips, clip, func(a, b *AudioClip) bool { return a.StartTick < b.StartTick })
		id = c.ID
		return true
	})
	return id
}

// RemoveClip deletes a MIDI or audio clip from whichever track holds it.
func (p *Project) RemoveClip(clipID int) bool {
	return p.mutate(Change{Kind: ChangeClip, ID: clipID}, func() bool {
		for _, at := range p.arrangement.Tracks {
			if i := slices.IndexFunc(at.MidiClips, func(c *MidiClip) bool { return c.ID == clipID }); i >= 0 {
				at.MidiClips = slices.Delete(at.MidiClips, i, i+1)
				return true
			}
			if i := slices.IndexFunc(at.AudioClips, func(c *AudioClip) bool { return c.ID == clipID }); i >= 0 {
				at.AudioClips = slices.Delete(at.AudioClips, i, i+1)
				return true
			}
		}
		return false
	})
}

// UpdateAudioClip applies fn to an audio clip under the write lock.
func (p *Project) UpdateAudioClip(clipID int, fn func(*AudioClip)) bool {
	return p.mutate(Change{Kind: ChangeClip, ID: clipID}, func() bool {
		for _, at := range p.arrangement.Tracks {
			for _, c := range at.AudioClips {
				if c.ID == clipID {
					fn(c)
					slices.SortStableFunc(at.AudioClips, func(a, b *AudioClip) int { return a.StartTick - b.StartTick })
					return true
				}
			}
		}
		return false
	})
}

// UpdateMidiClip applies fn to a MIDI clip under the write lock.
func (p *Project) UpdateMidiClip(clipID int, fn func(*MidiClip)) bool {
	return p.mutate(Change{Kind: ChangeClip, ID: clipID}, func() bool {
		for _, at := range p.arrangement.Tracks {
			for _, c := range at.MidiClips {
				if c.ID == clipID {
					fn(c)
					slices.SortStableFunc(at.MidiClips, func(a, b *MidiClip) int { return a.StartTick - b.StartTick })
					return true
				}
			}
		}
		return false
	})
}

// LengthTicks is the arrangement end, or the active sequence end when
// arrangement is false.
func (p *Project) LengthTicks(arrangement bool) int {
	if arrangement {
		return p.arrangement.LengthTicks()
	}
	if s := p.ActiveSequence(); s != nil {
		return s.LengthTicks()
	}
	return 0
}
