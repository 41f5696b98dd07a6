package synth

import (
	"math"
	"strings"
	"sync"

	"github.com/cbegin/seqmix/internal/lfo"
)

const twoPi = math.Pi * 2

type Wave int

const (
	WavePulse Wave = iota
	WaveTriangle
	WaveSaw
	WaveNoise
)

var waveNames = [...]string{"pulse", "triangle", "saw", "noise"}

func (w Wave) String() string {
	if w < 0 || int(w) >= len(waveNames) {
		return "pulse"
	}
	return waveNames[w]
}

// ParseWave maps a name to a wave; unknown names give WavePulse and false.
func ParseWave(name string) (Wave, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range waveNames {
		if n == name {
			return Wave(i), true
		}
	}
	return WavePulse, false
}

type Params struct {
	Voices       int
	Gain         float64
	Wave         Wave
	Duty         float64 // pulse width in (0, 1)
	AttackSec    float64
	DecaySec     float64
	SustainLvl   float64
	ReleaseSec   float64
	VibratoDepth float64 // semitones
	VibratoRate  float64 // Hz
	LPFCutoff    float64 // Hz, 0 disables
}

func DefaultParams() Params {
	return Params{
		Voices:     8,
		Gain:       0.3,
		Wave:       WavePulse,
		Duty:       0.25,
		AttackSec:  0.005,
		DecaySec:   0.15,
		SustainLvl: 0.65,
		ReleaseSec: 0.2,
		LPFCutoff:  12000,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active   bool
	id       int
	age      int
	freq     float64
	phase    float64
	velocity float64
	env      float64
	envState envState
	lfsr     uint16
}

// Pulse is a small polyphonic oscillator synth. It is safe to trigger notes
// from one goroutine while another renders.
type Pulse struct {
	mu         sync.Mutex
	name       string
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	vibrato    lfo.LFO
	dcPrevIn   float64
	dcPrevOut  float64
	lpf        float64
	lpfAlpha   float64
}

func NewPulse(name string, sampleRate int, params Params) *Pulse {
	if params.Voices <= 0 {
		params.Voices = 8
	}
	if params.Duty <= 0 || params.Duty >= 1 {
		params.Duty = 0.5
	}
	p := &Pulse{
		name:       name,
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		nextID:     1,
	}
	for i := range p.voices {
		p.voices[i].lfsr = uint16(0xACE1 + i*97)
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		p.lpfAlpha = dt / (rc + dt)
	}
	p.vibrato.Set(params.VibratoDepth, params.VibratoRate, lfo.WaveSine)
	return p
}

func (p *Pulse) Name() string { return p.name }

func (p *Pulse) Params() Params { return p.params }

func (p *Pulse) NotePlay(note, velocity int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	slot := p.stealVoice()
	id := p.nextID
	p.nextID++
	v := &p.voices[slot]
	lfsr := v.lfsr
	if lfsr == 0 {
		lfsr = 0xACE1
	}
	*v = voice{
		active:   true,
		id:       id,
		freq:     midiToFreq(note),
		velocity: clamp(float64(velocity)/127.0, 0, 1),
		envState: envAttack,
		lfsr:     lfsr,
	}
	return id
}

func (p *Pulse) NoteStop(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.voices {
		v := &p.voices[i]
		if v.active && v.id == id && v.envState != envRelease {
			v.envState = envRelease
		}
	}
}

// AllNotesOff releases every sounding voice.
func (p *Pulse) AllNotesOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.voices {
		if p.voices[i].active {
			p.voices[i].envState = envRelease
		}
	}
}

func (p *Pulse) ActiveVoices() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}

func (p *Pulse) RenderAudio(left, right []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		s := float32(p.renderFrame())
		left[i] = s
		right[i] = s
	}
}

func (p *Pulse) renderFrame() float64 {
	freqMul := 1.0
	if mod := p.vibrato.Sample(p.sampleRate); mod != 0 {
		freqMul = math.Pow(2, mod/12.0)
	}
	var out float64
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		v.age++
		env := p.advanceEnv(v)
		if !v.active {
			continue
		}
		out += p.renderWave(v, v.freq*freqMul) * env * (0.15 + 0.85*v.velocity)
	}
	out *= p.params.Gain

	// dc blocker
	y := out - p.dcPrevIn + 0.995*p.dcPrevOut
	p.dcPrevIn = out
	p.dcPrevOut = y
	out = y

	if p.lpfAlpha > 0 {
		p.lpf += p.lpfAlpha * (out - p.lpf)
		out = p.lpf
	}
	return clamp(out, -1, 1)
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (p *Pulse) renderWave(v *voice, freq float64) float64 {
	dt := freq / p.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch p.params.Wave {
	case WaveTriangle:
		return 2*math.Abs(2*v.phase-1) - 1
	case WaveSaw:
		return 2*v.phase - 1 - polyBLEP(v.phase, dt)
	case WaveNoise:
		if v.phase < dt {
			bit := (v.lfsr ^ (v.lfsr >> 1)) & 1
			v.lfsr = (v.lfsr >> 1) | (bit << 15)
		}
		if v.lfsr&1 == 1 {
			return 1
		}
		return -1
	default:
		duty := p.params.Duty
		out := -1.0
		if v.phase < duty {
			out = 1
		}
		out += polyBLEP(v.phase, dt)
		out -= polyBLEP(math.Mod(v.phase-duty+1, 1), dt)
		return out
	}
}

func (p *Pulse) stealVoice() int {
	for i := range p.voices {
		if !p.voices[i].active {
			return i
		}
	}
	// oldest releasing voice first, then the oldest overall
	oldestRelease, oldestReleaseAge := -1, -1
	oldest, oldestAge := 0, -1
	for i := range p.voices {
		v := &p.voices[i]
		if v.envState == envRelease && v.age > oldestReleaseAge {
			oldestRelease, oldestReleaseAge = i, v.age
		}
		if v.age > oldestAge {
			oldest, oldestAge = i, v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldest
}

func (p *Pulse) advanceEnv(v *voice) float64 {
	pr := &p.params
	switch v.envState {
	case envAttack:
		v.env += envStep(1, pr.AttackSec, p.sampleRate)
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		v.env -= envStep(1-pr.SustainLvl, pr.DecaySec, p.sampleRate)
		if v.env <= pr.SustainLvl {
			v.env = pr.SustainLvl
			v.envState = envSustain
		}
	case envRelease:
		v.env -= envStep(max(pr.SustainLvl, 0.05), pr.ReleaseSec, p.sampleRate)
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

func envStep(span, seconds, sampleRate float64) float64 {
	step := span / (seconds * sampleRate)
	if step <= 0 || math.IsInf(step, 0) || math.IsNaN(step) {
		return 1
	}
	return step
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
