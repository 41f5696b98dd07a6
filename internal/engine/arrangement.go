package engine

import (
	"github.com/cbegin/seqmix/internal/model"
	"github.com/cbegin/seqmix/internal/resource"
	"github.com/cbegin/seqmix/internal/synth"
	"github.com/cbegin/seqmix/internal/tempo"
	"github.com/viterin/vek/vek32"
)

// voiceJob is a voice to render on arrangement track lane. clip is nil while
// the voice rings on past the end of its last clip.
type voiceJob struct {
	track *model.Track
	lane  int
	clip  *model.MidiClip
}

// window is a clip placement in timeline frames.
type window struct {
	start, end      int64
	fadeIn, fadeOut int64
}

func (w window) gain(pos int64) float32 {
	return FadeGain(pos, w.start, w.fadeIn, w.end, w.fadeOut)
}

func (e *Engine) window(tm *tempo.Map, startTick, endTick, fadeInTicks, fadeOutTicks int) window {
	frame := func(tick int) int64 { return secondsToFrame(tm.TicksToSeconds(tick), e.sampleRate) }
	w := window{start: frame(startTick), end: frame(endTick)}
	if fadeInTicks > 0 {
		w.fadeIn = frame(startTick+fadeInTicks) - w.start
	}
	if fadeOutTicks > 0 {
		w.fadeOut = w.end - frame(endTick-fadeOutTicks)
	}
	return w
}

func asSoftSynth(t *model.Track) (synth.SoftSynth, bool) {
	return synth.AsSoftSynth(t.Synth)
}

func (e *Engine) renderArrangement(mixL, mixR []float32, pos Position) {
	arr := e.project.Arrangement()
	n := len(mixL)
	tm := pos.tempoMap()
	anySolo := arr.AnySolo()
	e.attributeVoices(arr.Tracks, pos.Tick)

	busL, busR := e.busL[:n], e.busR[:n]
	for i, lane := range arr.Tracks {
		if !arr.Audible(lane, anySolo) {
			e.decayLane(lane.ID)
			continue
		}
		clear(busL)
		clear(busR)
		voices := e.mixLaneVoices(i, lane, busL, busR, pos, tm)
		clips := e.mixLaneClips(lane, busL, busR, pos, tm)
		if !voices && !clips {
			e.decayLane(lane.ID)
			continue
		}
		e.laneRMS[lane.ID] = Levels{rmsDB(busL, e.sq), rmsDB(busR, e.sq)}
		vek32.Add_Inplace(mixL, busL)
		vek32.Add_Inplace(mixR, busR)
	}
}

// attributeVoices decides which arrangement track each soft-synth voice plays
// on. A voice belongs to the first track, in arrangement order, holding an
// active clip of its sequence at tick. Without one it stays on the track it
// last played on so notes can ring out.
func (e *Engine) attributeVoices(lanes []*model.ArrangementTrack, tick int) {
	e.jobs = e.jobs[:0]
	for _, seq := range e.project.Sequences() {
		lane, clip := activeClip(lanes, seq.ID, tick)
		for _, t := range seq.Tracks() {
			if t.IsTempo() || t.Muted {
				continue
			}
			if _, ok := asSoftSynth(t); !ok {
				continue
			}
			if clip != nil {
				e.voiceLane[t.ID] = lanes[lane].ID
				e.jobs = append(e.jobs, voiceJob{track: t, lane: lane, clip: clip})
				continue
			}
			last, ok := e.voiceLane[t.ID]
			if !ok {
				continue
			}
			idx := laneIndex(lanes, last)
			if idx < 0 {
				delete(e.voiceLane, t.ID)
				delete(e.fadeOuts, t.ID)
				continue
			}
			if f, ok := e.fadeOuts[t.ID]; ok && f.done(e.samplePos) {
				continue
			}
			e.jobs = append(e.jobs, voiceJob{track: t, lane: idx})
		}
	}
}

func activeClip(lanes []*model.ArrangementTrack, seqID, tick int) (int, *model.MidiClip) {
	for i, lane := range lanes {
		for _, c := range lane.MidiClips {
			if c.StartTick > tick {
				break
			}
			if c.SequenceID == seqID && !c.Muted && c.ContainsTick(tick) {
				return i, c
			}
		}
	}
	return -1, nil
}

func laneIndex(lanes []*model.ArrangementTrack, id int) int {
	for i, l := range lanes {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) mixLaneVoices(lane int, at *model.ArrangementTrack, busL, busR []float32, pos Position, tm *tempo.Map) bool {
	p := newPanner(at.Volume, at.Pan)
	mixed := false
	for _, j := range e.jobs {
		if j.lane != lane {
			continue
		}
		vl, vr, ok := e.renderVoice(j.track, len(busL))
		if !ok {
			continue
		}
		mixed = true
		e.trackRMS[j.track.ID] = Levels{rmsDB(vl, e.sq), rmsDB(vr, e.sq)}

		if j.clip != nil {
			w := e.window(tm, j.clip.StartTick, j.clip.EndTick(), j.clip.FadeInTicks, j.clip.FadeOutTicks)
			e.trackFadeOut(j.track.ID, w, pos)
			for i := range vl {
				l, r := p.apply(vl[i], vr[i], w.gain(pos.Frame+int64(i)))
				busL[i] += l
				busR[i] += r
			}
			continue
		}
		f, fading := e.fadeOuts[j.track.ID]
		for i := range vl {
			g := float32(1)
			if fading {
				g = f.gain(e.samplePos + int64(i))
			}
			l, r := p.apply(vl[i], vr[i], g)
			busL[i] += l
			busR[i] += r
		}
	}
	return mixed
}

// trackFadeOut remembers the fade-out of the clip a voice is playing, moved
// into the sample counter domain, so the fade continues once the clip is no
// longer active.
func (e *Engine) trackFadeOut(trackID int, w window, pos Position) {
	if w.fadeOut <= 0 {
		delete(e.fadeOuts, trackID)
		return
	}
	shift := e.samplePos - pos.Frame
	e.fadeOuts[trackID] = fadeRange{start: w.end - w.fadeOut + shift, end: w.end + shift}
}

// mixLaneClips composites the audio clips of at overlapping the callback.
func (e *Engine) mixLaneClips(at *model.ArrangementTrack, busL, busR []float32, pos Position, tm *tempo.Map) bool {
	if e.resources == nil || len(at.AudioClips) == 0 {
		return false
	}
	p := newPanner(at.Volume, at.Pan)
	winStart, winEnd := pos.Frame, pos.Frame+int64(len(busL))
	mixed := false
	for _, c := range at.AudioClips {
		if c.Muted {
			continue
		}
		res := e.resources.Resource(c.ResourceID)
		if res == nil || !res.Loaded() {
			continue
		}
		w := e.window(tm, c.StartTick, c.EndTick(), c.FadeInTicks, c.FadeOutTicks)
		from, to := max(w.start, winStart), min(w.end, winEnd)
		if from >= to {
			continue
		}
		n := int(to - from)
		srcL, srcR := e.srcL[:n], e.srcR[:n]
		if !e.readClip(res, c, from-w.start, srcL, srcR, pos) {
			continue
		}
		mixed = true
		off := int(from - winStart)
		for i := range n {
			l, r := p.apply(srcL[i], srcR[i], c.Gain*w.gain(from+int64(i)))
			busL[off+i] += l
			busR[off+i] += r
		}
	}
	return mixed
}

// readClip fills left and right with the clip audio starting rel frames into
// the clip. The used region of the resource starts at OffsetSamples and is
// ClipLengthSamples long when set; looping clips wrap inside it.
func (e *Engine) readClip(res *resource.Resource, c *model.AudioClip, rel int64, left, right []float32, pos Position) bool {
	length := res.TotalSamples() - c.OffsetSamples
	if c.ClipLengthSamples > 0 {
		length = min(length, c.ClipLengthSamples)
	}
	if length <= 0 || c.OffsetSamples < 0 {
		return false
	}
	at := rel + e.TickToSamples(c.OffsetTicks, pos.BPM, pos.PPQ)
	clear(left)
	clear(right)
	if !c.Looping {
		if at < 0 || at >= length {
			return false
		}
		n := int(min(int64(len(left)), length-at))
		res.PrepareForPosition(c.OffsetSamples + at)
		return res.GetSamples(c.OffsetSamples+at, left[:n], right[:n]) > 0
	}
	at %= length
	if at < 0 {
		at += length
	}
	res.PrepareForPosition(c.OffsetSamples + at)
	for done := 0; done < len(left); {
		n := int(min(int64(len(left)-done), length-at))
		res.GetSamples(c.OffsetSamples+at, left[done:done+n], right[done:done+n])
		done += n
		at = 0
	}
	return true
}

func (e *Engine) decayTrack(id int) {
	if l, ok := e.trackRMS[id]; ok {
		e.trackRMS[id] = Levels{decayDB(l.Left), decayDB(l.Right)}
	}
}

func (e *Engine) decayLane(id int) {
	if l, ok := e.laneRMS[id]; ok {
		e.laneRMS[id] = Levels{decayDB(l.Left), decayDB(l.Right)}
	}
}
