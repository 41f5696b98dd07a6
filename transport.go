package seqmix

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cbegin/seqmix/internal/engine"
	"github.com/cbegin/seqmix/internal/model"
	"github.com/cbegin/seqmix/internal/resource"
	"github.com/cbegin/seqmix/internal/synth"
	"github.com/cbegin/seqmix/internal/tempo"
)

// noteKey identifies a sounding note. clip is 0 in sequence mode.
type noteKey struct {
	clip, track, note int
}

// noteStart identifies a note start on the timeline across clips.
type noteStart struct {
	track, note, tick int
}

type sounding struct {
	np      synth.NotePlayer
	voice   int
	endTick int // timeline tick the note stops at
}

// transport owns the timeline cursor. Each Fill dispatches the note events
// falling inside the callback, then renders it. Note timing is therefore
// quantized to the callback length.
type transport struct {
	mu         sync.Mutex
	sampleRate int
	project    *model.Project
	resources  *resource.Manager
	engine     *engine.Engine
	loop       bool
	frame      int64
	notes      map[noteKey]sounding
	started    map[noteStart]bool
	ended      atomic.Bool
	onEvent    func(PlaybackEvent)
}

func newTransport(sampleRate int, p *model.Project, rm *resource.Manager, e *engine.Engine) *transport {
	return &transport{
		sampleRate: sampleRate,
		project:    p,
		resources:  rm,
		engine:     e,
		notes:      map[noteKey]sounding{},
		started:    map[noteStart]bool{},
		onEvent:    func(PlaybackEvent) {},
	}
}

// Fill renders the next len(dst)/2 frames. Once playback has ended it
// writes silence.
func (t *transport) Fill(dst []float32) {
	if t.ended.Load() {
		clear(dst)
		return
	}
	t.mu.Lock()
	ev, ok := t.advance(dst)
	t.mu.Unlock()
	if ok {
		t.onEvent(ev)
	}
}

func (t *transport) Ended() bool { return t.ended.Load() }

func (t *transport) advance(dst []float32) (PlaybackEvent, bool) {
	frames := len(dst) / 2
	tm, length := t.timeline()
	pos := engine.At(tm, t.frame, t.sampleRate)
	next := t.frame + int64(frames)
	endTick := tm.TickAt(float64(next) / float64(t.sampleRate))

	mode := t.engine.Mode()
	t.project.Read(func() { t.dispatch(mode, pos.Tick, endTick) })
	t.engine.Render(dst, frames, pos, true)
	t.frame = next

	if t.frame < length {
		return PlaybackEvent{}, false
	}
	t.silence()
	if t.loop && length > 0 {
		t.frame = 0
		t.engine.ResetAllBlocks()
		return PlaybackEvent{Kind: EventLoopCompleted}, true
	}
	t.ended.Store(true)
	return PlaybackEvent{Kind: EventPlaybackEnded, Tick: endTick}, true
}

// timeline returns the tempo map of the active sequence, which drives the
// timeline in both modes, and the playback length in frames.
func (t *transport) timeline() (*tempo.Map, int64) {
	var (
		tm    *tempo.Map
		ticks int
	)
	mode := t.engine.Mode()
	t.project.Read(func() {
		seq := t.project.ActiveSequence()
		if seq != nil {
			tm = seq.TempoMap()
		} else {
			tm = tempo.Fixed(t.project.PPQ(), tempo.DefaultBPM)
		}
		switch {
		case mode == engine.ModeArrangement:
			ticks = t.project.Arrangement().LengthTicks()
		case seq != nil:
			ticks = seq.LengthTicks()
		}
	})
	return tm, t.frameAt(tm, ticks)
}

// duration is the playback length in seconds.
func (t *transport) duration() float64 {
	_, length := t.timeline()
	return float64(length) / float64(t.sampleRate)
}

func (t *transport) frameAt(tm *tempo.Map, tick int) int64 {
	return int64(math.Round(tm.TicksToSeconds(tick) * float64(t.sampleRate)))
}

// dispatch stops the notes ending before to, then starts the notes
// beginning in [from, to). It runs under the project read lock.
func (t *transport) dispatch(mode engine.Mode, from, to int) {
	for k, s := range t.notes {
		if s.endTick < to {
			s.np.NoteStop(s.voice)
			delete(t.notes, k)
		}
	}
	if to <= from {
		return
	}
	if mode == engine.ModeArrangement {
		t.dispatchArrangement(from, to)
		return
	}
	seq := t.project.ActiveSequence()
	if seq == nil {
		return
	}
	anySolo := seq.AnySolo()
	for _, tr := range seq.Tracks() {
		if tr.IsTempo() || tr.Muted || (anySolo && !tr.Solo) {
			continue
		}
		np, ok := synth.AsNotePlayer(tr.Synth)
		if !ok {
			continue
		}
		for _, n := range notesStarting(tr.Notes, from, to) {
			t.start(noteKey{track: tr.ID, note: n.ID}, np, n, n.End())
		}
	}
}

// dispatchArrangement plays the clips of every arrangement track in
// [from, to). A note that several clips start at the same timeline tick is
// played once, from the lowest track.
func (t *transport) dispatchArrangement(from, to int) {
	clear(t.started)
	lanes := t.project.Arrangement().Tracks
	for _, seq := range t.project.Sequences() {
		for _, lane := range lanes {
			for _, c := range clipsIn(lane, seq.ID, from, to) {
				t.dispatchClip(seq, c, from, to)
			}
		}
	}
}

func (t *transport) dispatchClip(seq *model.Sequence, c *model.MidiClip, from, to int) {
	lo, hi := max(from, c.StartTick), min(to, c.EndTick())
	seqFrom, seqTo := c.SequenceTick(lo), c.SequenceTick(hi)
	for _, tr := range seq.Tracks() {
		if tr.IsTempo() || tr.Muted {
			continue
		}
		np, ok := synth.AsNotePlayer(tr.Synth)
		if !ok {
			continue
		}
		for _, n := range notesStarting(tr.Notes, seqFrom, seqTo) {
			at := noteStart{track: tr.ID, note: n.ID, tick: c.StartTick + n.Start - c.OffsetTicks}
			if t.started[at] {
				continue
			}
			t.started[at] = true
			end := min(c.EndTick(), c.StartTick+n.End()-c.OffsetTicks)
			t.start(noteKey{clip: c.ID, track: tr.ID, note: n.ID}, np, n, end)
		}
	}
}

func (t *transport) start(k noteKey, np synth.NotePlayer, n model.Note, endTick int) {
	if s, ok := t.notes[k]; ok {
		s.np.NoteStop(s.voice)
	}
	t.notes[k] = sounding{np: np, voice: np.NotePlay(n.Key, n.Velocity), endTick: endTick}
}

// silence stops every sounding note and sends all-notes-off to every
// note player of the project.
func (t *transport) silence() {
	for k, s := range t.notes {
		s.np.NoteStop(s.voice)
		delete(t.notes, k)
	}
	t.project.Read(func() {
		for _, seq := range t.project.Sequences() {
			for _, tr := range seq.Tracks() {
				if np, ok := synth.AsNotePlayer(tr.Synth); ok {
					np.AllNotesOff()
				}
			}
		}
	})
}

// seek moves the cursor to tick, silences notes, resets the render state and
// warms the streaming windows of the audio clips under the new position.
func (t *transport) seek(tick int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.silence()
	t.engine.ResetAllBlocks()
	tm, _ := t.timeline()
	t.frame = t.frameAt(tm, max(tick, 0))
	t.ended.Store(false)
	t.prepare(tm, max(tick, 0))
}

func (t *transport) prepare(tm *tempo.Map, tick int) {
	if t.resources == nil {
		return
	}
	t.project.Read(func() {
		for _, lane := range t.project.Arrangement().Tracks {
			for _, c := range lane.AudioClipsIn(tick, tick+1) {
				res := t.resources.Resource(c.ResourceID)
				if res == nil {
					continue
				}
				rel := t.frame - t.frameAt(tm, c.StartTick)
				rel += t.engine.TickToSamples(c.OffsetTicks, tm.TempoAtTick(tick), tm.PPQ())
				res.PrepareForPosition(c.OffsetSamples + max(rel, 0))
			}
		}
	})
}

// tick returns the timeline tick of the cursor.
func (t *transport) tick() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, _ := t.timeline()
	return tm.TickAt(float64(t.frame) / float64(t.sampleRate))
}

// notesStarting returns the notes of a Start-sorted slice beginning in
// [from, to).
func notesStarting(notes []model.Note, from, to int) []model.Note {
	cmp := func(n model.Note, tick int) int { return n.Start - tick }
	lo, _ := slices.BinarySearchFunc(notes, from, cmp)
	hi, _ := slices.BinarySearchFunc(notes, to, cmp)
	return notes[lo:hi]
}

func clipsIn(lane *model.ArrangementTrack, seqID, from, to int) []*model.MidiClip {
	var out []*model.MidiClip
	for _, c := range lane.MidiClips {
		if c.StartTick >= to {
			break
		}
		if c.SequenceID == seqID && !c.Muted && c.EndTick() > from {
			out = append(out, c)
		}
	}
	return out
}
