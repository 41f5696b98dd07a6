// Package seqmix plays a sequencer project: MIDI sequences rendered by
// software synths and an arrangement of MIDI and audio clips, mixed to a
// stereo stream for the output device or a WAV file.
package seqmix

import (
	"fmt"
	"log/slog"
	"sync"

	intaudio "github.com/cbegin/seqmix/internal/audio"
	"github.com/cbegin/seqmix/internal/engine"
	"github.com/cbegin/seqmix/internal/model"
	"github.com/cbegin/seqmix/internal/resource"
	"github.com/cbegin/seqmix/internal/tempo"
)

// PlaybackEvent carries transport and model events from Watch().
type PlaybackEvent struct {
	Kind   int // EventLoopCompleted, EventPlaybackEnded, EventSeeked or EventModelChanged
	Tick   int
	Change model.Change
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
	EventSeeked
	EventModelChanged
)

// PlayerOption configures a Player at construction.
type PlayerOption func(*playerConfig)

type playerConfig struct {
	log          *slog.Logger
	mode         engine.Mode
	loopPlayback bool
	blockFrames  int
	ppq          int
	resourceOpts []resource.Option
	taps         []engine.Tap
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		log:         slog.Default(),
		blockFrames: 512,
		ppq:         tempo.DefaultPPQ,
	}
}

// WithLogger sets the logger shared by the player, its engine and its
// resource manager. The default is slog.Default().
func WithLogger(l *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if l != nil {
			cfg.log = l
		}
	}
}

// WithMode selects sequence or arrangement playback.
func WithMode(m engine.Mode) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.mode = m
	}
}

// WithLoopPlayback starts the player with looping on or off.
func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithBlockFrames sets the number of frames rendered per callback.
func WithBlockFrames(n int) PlayerOption {
	return func(cfg *playerConfig) {
		if n > 0 {
			cfg.blockFrames = n
		}
	}
}

// WithPPQ sets the tick resolution of new sequences.
func WithPPQ(ppq int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.ppq = ppq
	}
}

// WithResourceOptions configures every imported audio resource.
func WithResourceOptions(opts ...resource.Option) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.resourceOpts = append(cfg.resourceOpts, opts...)
	}
}

// WithTap installs an analyzer fed with each rendered master buffer. Push
// runs on the audio thread; keep work brief and non-blocking.
func WithTap(t engine.Tap) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.taps = append(cfg.taps, t)
	}
}

// Player owns a project, its audio resources and the render engine, and
// drives them from a transport.
type Player struct {
	mu          sync.Mutex
	sampleRate  int
	blockFrames int
	log         *slog.Logger
	project     *model.Project
	resources   *resource.Manager
	engine      *engine.Engine
	transport   *transport
	audio       *intaudio.Player
	done        chan struct{}
	eventCh     chan PlaybackEvent
	eventChMu   sync.Mutex
	unsubscribe func()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	project := model.NewProject(nil, cfg.ppq)
	resOpts := append([]resource.Option{resource.WithLogger(cfg.log)}, cfg.resourceOpts...)
	resources := resource.NewManager(sampleRate, resOpts...)
	eng := engine.New(sampleRate, project, resources, engine.WithLogger(cfg.log), engine.WithMode(cfg.mode))
	for _, t := range cfg.taps {
		eng.AddTap(t)
	}

	p := &Player{
		sampleRate:  sampleRate,
		blockFrames: cfg.blockFrames,
		log:         cfg.log,
		project:     project,
		resources:   resources,
		engine:      eng,
	}
	p.transport = newTransport(sampleRate, project, resources, eng)
	p.transport.loop = cfg.loopPlayback
	p.transport.onEvent = p.handleTransportEvent
	p.unsubscribe = project.Observers().Subscribe(func(c model.Change) {
		p.sendEvent(PlaybackEvent{Kind: EventModelChanged, Change: c})
	})
	return p, nil
}

func (p *Player) SampleRate() int { return p.sampleRate }

// Project returns the project being played. Edits are picked up by the next
// render callback.
func (p *Player) Project() *model.Project { return p.project }

func (p *Player) Resources() *resource.Manager { return p.resources }

// Engine exposes the mixer: master chain, per-synth chains, metronome,
// meters and mode.
func (p *Player) Engine() *engine.Engine { return p.engine }

// ImportAudio decodes a WAV file into the resource pool.
func (p *Player) ImportAudio(path string) (*resource.Resource, error) {
	return p.resources.ImportAudio(path)
}

// SetMode switches between sequence and arrangement playback. Sounding notes
// are released and the cursor stays where it is.
func (p *Player) SetMode(m engine.Mode) {
	if p.engine.Mode() == m {
		return
	}
	tick := p.transport.tick()
	p.engine.SetMode(m)
	p.transport.seek(tick)
}

// Play starts the output stream from the current position. Playing after
// the end starts over from the beginning.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.transport.Ended() {
		p.transport.seek(0)
	}
	if p.done == nil {
		p.done = make(chan struct{})
	}
	if p.audio == nil {
		backend, err := intaudio.NewPlayer(p.sampleRate, p.blockFrames, p.transport)
		if err != nil {
			return err
		}
		p.audio = backend
	}
	p.audio.Play()
	p.log.Debug("playback started", "tick", p.transport.tick(), "mode", p.engine.Mode())
	return nil
}

func (p *Player) handleTransportEvent(ev PlaybackEvent) {
	p.sendEvent(ev)
	if ev.Kind == EventPlaybackEnded {
		p.signalDone()
	}
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Pause halts the audio device without moving the playhead.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

// Resume restarts a paused audio device.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// Stop closes the output stream, releases all notes and rewinds to the
// start.
func (p *Player) Stop() error {
	p.mu.Lock()
	var err error
	if p.audio != nil {
		err = p.audio.Close()
		p.audio = nil
	}
	done := p.done
	p.done = nil
	p.mu.Unlock()

	p.transport.seek(0)
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
	return err
}

// Seek moves playback to a timeline tick. Notes are released and effect
// state is cleared, so the jump never carries tails from the old position.
func (p *Player) Seek(tick int) {
	p.transport.seek(tick)
	p.log.Debug("seek", "tick", tick)
	p.sendEvent(PlaybackEvent{Kind: EventSeeked, Tick: max(tick, 0)})
}

// Position returns the timeline tick of the next rendered callback.
func (p *Player) Position() int {
	return p.transport.tick()
}

// Duration is the playback length in seconds: the end of the last note of
// the active sequence, or of the last clip in arrangement mode.
func (p *Player) Duration() float64 {
	return p.transport.duration()
}

// Wait blocks until the current playback ends. When loop playback is
// enabled, Wait blocks until Stop.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events:
//   - EventLoopCompleted: the end was reached and playback restarted (when looping)
//   - EventPlaybackEnded: playback finished or was stopped
//   - EventSeeked: Seek moved the cursor (Tick set)
//   - EventModelChanged: the project was edited (Change set)
//
// The channel is buffered (cap 8) and events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets the master volume control. 1.0 is unity; the engine
// clamps to [0, 2].
func (p *Player) SetMasterVolume(volume float64) {
	p.engine.SetMasterVolume(float32(volume))
}

func (p *Player) MasterVolume() float64 {
	return float64(p.engine.MasterVolume())
}

// PlaybackPosition returns the output position of the audio driver in
// frames, i.e. what the listener hears right now. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	return int64(a.Position().Seconds() * float64(p.sampleRate))
}

// Close stops playback, detaches from the project and releases the audio
// resources.
func (p *Player) Close() error {
	err := p.Stop()
	p.unsubscribe()
	if cerr := p.resources.Close(); err == nil {
		err = cerr
	}
	return err
}
