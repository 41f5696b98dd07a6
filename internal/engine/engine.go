// Package engine renders the project into interleaved stereo PCM, one
// buffer per audio callback.
//
// A callback clears the mix, renders the software-synth voices (the active
// sequence in sequence mode, or every voice attributed to an arrangement
// track in arrangement mode), composites arrangement audio clips, runs the
// master chain, adds the metronome, applies the master volume, meters the
// result, feeds the analyzer taps and interleaves.
package engine

import (
	"log/slog"
	"sync"

	"github.com/cbegin/seqmix/internal/effects"
	"github.com/cbegin/seqmix/internal/model"
	"github.com/cbegin/seqmix/internal/resource"
	"github.com/viterin/vek/vek32"
)

// Mode selects what the engine plays.
type Mode int

const (
	ModeSequence Mode = iota
	ModeArrangement
)

func (m Mode) String() string {
	if m == ModeArrangement {
		return "arrangement"
	}
	return "sequence"
}

// Tap receives the final master buffers of each metered callback.
// Push runs on the render goroutine and must not block.
type Tap interface {
	Push(left, right []float32)
}

// Levels is a stereo level pair in dBFS.
type Levels struct {
	Left, Right float32
}

var silentLevels = Levels{SilenceDB, SilenceDB}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for configuration changes. The render path
// never logs.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMode sets the initial playback mode.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// Engine mixes voices and audio clips of a project. One mutex guards the
// whole engine and is held for the duration of Render, so configuration
// calls from other goroutines should be brief.
type Engine struct {
	mu         sync.Mutex
	sampleRate int
	project    *model.Project
	resources  *resource.Manager
	log        *slog.Logger

	mode         Mode
	dspEnabled   bool
	master       *effects.Chain
	synthChains  map[int]*effects.Chain // by sequence track ID
	masterVolume float32
	metronome    metronome
	taps         []Tap

	// render state
	samplePos int64

	// last arrangement track ID and pending fade-out per sequence track ID
	voiceLane  map[int]int
	fadeOuts   map[int]fadeRange
	jobs       []voiceJob
	trackRMS   map[int]Levels
	laneRMS    map[int]Levels
	masterRMS  Levels
	mixL, mixR []float32
	busL, busR []float32
	srcL, srcR []float32
	sq         []float32
}

// New returns an engine rendering project at sampleRate. resources may be
// nil when the project has no audio clips.
func New(sampleRate int, project *model.Project, resources *resource.Manager, opts ...Option) *Engine {
	e := &Engine{
		sampleRate:   sampleRate,
		project:      project,
		resources:    resources,
		log:          slog.Default(),
		dspEnabled:   true,
		master:       effects.NewChain(),
		synthChains:  map[int]*effects.Chain{},
		masterVolume: 1,
		metronome:    newMetronome(sampleRate),
		voiceLane:    map[int]int{},
		fadeOuts:     map[int]fadeRange{},
		trackRMS:     map[int]Levels{},
		laneRMS:      map[int]Levels{},
		masterRMS:    silentLevels,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) SampleRate() int { return e.sampleRate }

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != m {
		e.log.Debug("render mode changed", "mode", m)
	}
	e.mode = m
}

// SetDSPEnabled turns the master and per-synth chains on or off.
func (e *Engine) SetDSPEnabled(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dspEnabled = on
}

func (e *Engine) DSPEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dspEnabled
}

// SetMasterVolume sets the master volume control, clamped to [0, 2].
func (e *Engine) SetMasterVolume(v float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterVolume = max(0, min(2, v))
}

func (e *Engine) MasterVolume() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterVolume
}

// SetMetronome enables the click and sets its volume.
func (e *Engine) SetMetronome(enabled bool, volume float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metronome.enabled = enabled
	e.metronome.volume = max(0, volume)
}

// AddTap registers an analyzer fed on every metered callback.
func (e *Engine) AddTap(t Tap) {
	if t == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taps = append(e.taps, t)
}

// AddMasterBlock appends a block to the master chain.
func (e *Engine) AddMasterBlock(b effects.Block) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.master.Add(b)
	e.log.Debug("master block added", "block", b.Name(), "index", e.master.Len()-1)
}

func (e *Engine) RemoveMasterBlock(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.master.Remove(i)
	return ok
}

// MoveMasterBlock reorders the master chain.
func (e *Engine) MoveMasterBlock(from, to int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master.Move(from, to)
}

func (e *Engine) SetMasterBlockEnabled(i int, on bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master.SetEnabled(i, on)
}

// MasterBlocks returns the master blocks in processing order.
func (e *Engine) MasterBlocks() []effects.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master.Blocks()
}

// AddSynthBlock appends a block to the chain of the voice owned by trackID.
func (e *Engine) AddSynthBlock(trackID int, b effects.Block) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.synthChains[trackID]
	if c == nil {
		c = effects.NewChain()
		e.synthChains[trackID] = c
	}
	c.Add(b)
}

func (e *Engine) RemoveSynthBlock(trackID, i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.synthChains[trackID]
	if c == nil {
		return false
	}
	_, ok := c.Remove(i)
	if c.Len() == 0 {
		delete(e.synthChains, trackID)
	}
	return ok
}

// SynthBlocks returns the chain of the voice owned by trackID.
func (e *Engine) SynthBlocks(trackID int) []effects.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c := e.synthChains[trackID]; c != nil {
		return c.Blocks()
	}
	return nil
}

// ResetAllBlocks clears every effect block, the sample counter and the
// fade-out tracking. Call it whenever playback jumps.
func (e *Engine) ResetAllBlocks() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.master.Reset()
	for _, c := range e.synthChains {
		c.Reset()
	}
	e.metronome.reset()
	e.samplePos = 0
	clear(e.fadeOuts)
	clear(e.voiceLane)
}

// SamplePosition is the number of frames rendered since the last reset.
func (e *Engine) SamplePosition() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.samplePos
}

// MasterLevels returns the master level of the last metered callback.
func (e *Engine) MasterLevels() Levels {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterRMS
}

// TrackLevels returns the cached level of a sequence track.
func (e *Engine) TrackLevels(trackID int) (Levels, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.trackRMS[trackID]
	return l, ok
}

// ArrangementTrackLevels returns the cached level of an arrangement track.
func (e *Engine) ArrangementTrackLevels(trackID int) (Levels, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.laneRMS[trackID]
	return l, ok
}

// TickToSamples converts ticks at the given constant tempo.
func (e *Engine) TickToSamples(ticks int, bpm float64, ppq int) int64 {
	return TickToSamples(ticks, bpm, ppq, e.sampleRate)
}

func (e *Engine) SampleToTicks(samples int64, bpm float64, ppq int) int {
	return SampleToTicks(samples, bpm, ppq, e.sampleRate)
}

// Render fills out with frames interleaved stereo frames starting at pos.
// Master levels are only computed, and taps only fed, when computeRMS is
// set. Missing voices, clips or resources contribute silence.
func (e *Engine) Render(out []float32, frames int, pos Position, computeRMS bool) {
	frames = min(frames, len(out)/2)
	if frames <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.grow(frames)
	mixL, mixR := e.mixL[:frames], e.mixR[:frames]
	clear(mixL)
	clear(mixR)

	if e.project != nil {
		e.project.Read(func() {
			switch e.mode {
			case ModeArrangement:
				e.renderArrangement(mixL, mixR, pos)
			default:
				e.renderSequence(mixL, mixR)
			}
		})
	}

	if e.dspEnabled {
		e.master.Process(mixL, mixR)
	}
	e.metronome.mix(mixL, mixR, pos)
	if g := masterGain(e.masterVolume); g != 1 {
		vek32.MulNumber_Inplace(mixL, g)
		vek32.MulNumber_Inplace(mixR, g)
	}
	if computeRMS {
		e.masterRMS = Levels{rmsDB(mixL, e.sq), rmsDB(mixR, e.sq)}
		for _, t := range e.taps {
			t.Push(mixL, mixR)
		}
	}
	Interleave(out[:frames*2], mixL, mixR)
	e.samplePos += int64(frames)
}

func (e *Engine) grow(n int) {
	for _, b := range []*[]float32{&e.mixL, &e.mixR, &e.busL, &e.busR, &e.srcL, &e.srcR, &e.sq} {
		if len(*b) < n {
			*b = make([]float32, n)
		}
	}
}

func (e *Engine) renderSequence(mixL, mixR []float32) {
	seq := e.project.ActiveSequence()
	if seq == nil {
		return
	}
	n := len(mixL)
	anySolo := seq.AnySolo()
	for _, t := range seq.Tracks() {
		if t.IsTempo() {
			continue
		}
		if t.Muted || (anySolo && !t.Solo) {
			e.decayTrack(t.ID)
			continue
		}
		vl, vr, ok := e.renderVoice(t, n)
		if !ok {
			continue
		}
		e.trackRMS[t.ID] = Levels{rmsDB(vl, e.sq), rmsDB(vr, e.sq)}
		vek32.Add_Inplace(mixL, vl)
		vek32.Add_Inplace(mixR, vr)
	}
}

// renderVoice renders the soft synth of t into the source scratch buffers
// and runs its chain.
func (e *Engine) renderVoice(t *model.Track, n int) (left, right []float32, ok bool) {
	ss, ok := asSoftSynth(t)
	if !ok {
		return nil, nil, false
	}
	left, right = e.srcL[:n], e.srcR[:n]
	clear(left)
	clear(right)
	ss.RenderAudio(left, right)
	if c := e.synthChains[t.ID]; c != nil && e.dspEnabled {
		c.Process(left, right)
	}
	return left, right, true
}
