package synth

import (
	"math"
	"sync"

	"github.com/cbegin/seqmix/internal/lfo"
)

// Algorithm selects how the operators of an FM voice are connected.
// Operator 0 is always a carrier.
type Algorithm int

const (
	// AlgCascade chains every operator into the next: n-1 → … → 1 → 0.
	AlgCascade Algorithm = iota
	// AlgStack sums the modulators into operator 0.
	AlgStack
	// AlgPairs runs two modulator/carrier pairs (2→1, 3→0) in parallel.
	AlgPairs
	// AlgAdditive plays every operator as a carrier.
	AlgAdditive
)

type FMParams struct {
	Voices    int
	Gain      float64
	Algorithm Algorithm
	Operators int        // 1 to 4
	Ratios    [4]float64 // frequency multiple per operator
	Levels    [4]float64 // output level per operator
	Feedback  float64    // self-modulation of the last operator, 0 to 1
	ModIndex  float64

	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64

	TremoloDepth float64 // gain swing, 0 to 1
	TremoloRate  float64 // Hz
}

func DefaultFMParams() FMParams {
	return FMParams{
		Voices:     16,
		Gain:       0.35,
		Operators:  2,
		Algorithm:  AlgCascade,
		Ratios:     [4]float64{1, 2, 3, 4},
		Levels:     [4]float64{1, 0.2, 0.2, 0.2},
		ModIndex:   1.6,
		AttackSec:  0.005,
		DecaySec:   0.12,
		SustainLvl: 0.75,
		ReleaseSec: 0.2,
	}
}

type fmOperator struct {
	phase    float64
	env      float64
	envState envState
	prev     float64
}

type fmVoice struct {
	active   bool
	id       int
	age      int
	freq     float64
	velocity float64
	ops      [4]fmOperator
}

// FM is a polyphonic phase-modulation synth with up to four sine operators
// per voice sharing one envelope shape.
type FM struct {
	mu         sync.Mutex
	name       string
	sampleRate float64
	params     FMParams
	voices     []fmVoice
	nextID     int
	tremolo    lfo.LFO
}

func NewFM(name string, sampleRate int, params FMParams) *FM {
	if params.Voices <= 0 {
		params.Voices = 16
	}
	params.Operators = max(1, min(4, params.Operators))
	params.Feedback = clamp(params.Feedback, 0, 1)
	for i, r := range params.Ratios {
		if r <= 0 {
			params.Ratios[i] = float64(i + 1)
		}
	}
	f := &FM{
		name:       name,
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]fmVoice, params.Voices),
	}
	f.params.TremoloDepth = clamp(params.TremoloDepth, 0, 1)
	f.tremolo.Set(f.params.TremoloDepth, params.TremoloRate, lfo.WaveSine)
	return f
}

func (f *FM) Name() string { return f.name }

func (f *FM) Params() FMParams { return f.params }

func (f *FM) NotePlay(note, velocity int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot := f.stealVoice()
	id := f.nextID
	f.nextID++
	f.voices[slot] = fmVoice{
		active:   true,
		id:       id,
		freq:     midiToFreq(note),
		velocity: clamp(float64(velocity)/127.0, 0, 1),
	}
	return id
}

func (f *FM) NoteStop(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.voices {
		if v := &f.voices[i]; v.active && v.id == id {
			f.release(v)
		}
	}
}

// AllNotesOff releases every sounding voice.
func (f *FM) AllNotesOff() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.voices {
		if v := &f.voices[i]; v.active {
			f.release(v)
		}
	}
}

func (f *FM) release(v *fmVoice) {
	for oi := range v.ops {
		if v.ops[oi].envState != envOff {
			v.ops[oi].envState = envRelease
		}
	}
}

func (f *FM) ActiveVoices() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.voices {
		if f.voices[i].active {
			n++
		}
	}
	return n
}

func (f *FM) RenderAudio(left, right []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		s := float32(f.renderFrame())
		left[i] = s
		right[i] = s
	}
}

func (f *FM) renderFrame() float64 {
	amp := 1.0
	if f.tremolo.Active() {
		// swings between 1-depth and 1
		amp = 1 + (f.tremolo.Sample(f.sampleRate)-f.params.TremoloDepth)/2
	}
	var out float64
	for i := range f.voices {
		v := &f.voices[i]
		if !v.active {
			continue
		}
		v.age++
		if !f.advanceEnvs(v) {
			v.active = false
			continue
		}
		out += f.renderVoice(v) * (0.2 + 0.8*v.velocity)
		for oi := 0; oi < f.params.Operators; oi++ {
			op := &v.ops[oi]
			op.phase += twoPi * v.freq * f.params.Ratios[oi] / f.sampleRate
			if op.phase > twoPi {
				op.phase -= twoPi
			}
		}
	}
	return clamp(out*f.params.Gain*amp, -1, 1)
}

// renderVoice evaluates the operator graph of one voice.
func (f *FM) renderVoice(v *fmVoice) float64 {
	n := f.params.Operators
	idx := f.params.ModIndex
	var lvl [4]float64
	for oi := 0; oi < n; oi++ {
		lvl[oi] = v.ops[oi].env * f.params.Levels[oi]
	}
	// the last operator carries the feedback path
	last := &v.ops[n-1]
	fb := last.prev * f.params.Feedback * math.Pi
	top := math.Sin(last.phase+fb) * lvl[n-1]
	last.prev = top
	if n == 1 {
		return top
	}

	switch f.params.Algorithm {
	case AlgStack:
		mod := top * idx
		for oi := 1; oi < n-1; oi++ {
			mod += math.Sin(v.ops[oi].phase) * lvl[oi] * idx
		}
		return math.Sin(v.ops[0].phase+mod) * lvl[0]
	case AlgPairs:
		if n < 4 {
			return math.Sin(v.ops[0].phase+top*idx) * lvl[0]
		}
		c1 := math.Sin(v.ops[1].phase+math.Sin(v.ops[2].phase)*lvl[2]*idx) * lvl[1]
		c0 := math.Sin(v.ops[0].phase+top*idx) * lvl[0]
		return (c0 + c1) / math.Sqrt2
	case AlgAdditive:
		s := top
		for oi := 0; oi < n-1; oi++ {
			s += math.Sin(v.ops[oi].phase) * lvl[oi]
		}
		return s / math.Sqrt(float64(n))
	default:
		mod := top * idx
		for oi := n - 2; oi > 0; oi-- {
			mod = math.Sin(v.ops[oi].phase+mod) * lvl[oi] * idx
		}
		return math.Sin(v.ops[0].phase+mod) * lvl[0]
	}
}

// advanceEnvs steps every operator envelope and reports whether the voice
// still sounds.
func (f *FM) advanceEnvs(v *fmVoice) bool {
	pr := &f.params
	sounding := false
	for oi := 0; oi < pr.Operators; oi++ {
		op := &v.ops[oi]
		switch op.envState {
		case envAttack:
			op.env += envStep(1, pr.AttackSec, f.sampleRate)
			if op.env >= 1 {
				op.env = 1
				op.envState = envDecay
			}
		case envDecay:
			op.env -= envStep(1-pr.SustainLvl, pr.DecaySec, f.sampleRate)
			if op.env <= pr.SustainLvl {
				op.env = pr.SustainLvl
				op.envState = envSustain
			}
		case envRelease:
			op.env -= envStep(max(pr.SustainLvl, 0.05), pr.ReleaseSec, f.sampleRate)
			if op.env <= 0.0001 {
				op.env = 0
				op.envState = envOff
			}
		}
		if op.envState != envOff {
			sounding = true
		}
	}
	return sounding
}

func (f *FM) stealVoice() int {
	for i := range f.voices {
		if !f.voices[i].active {
			return i
		}
	}
	quiet, oldest := 0, 0
	for i := 1; i < len(f.voices); i++ {
		if f.voices[i].ops[0].env < f.voices[quiet].ops[0].env {
			quiet = i
		}
		if f.voices[i].age > f.voices[oldest].age {
			oldest = i
		}
	}
	if f.voices[quiet].ops[0].envState == envRelease {
		return quiet
	}
	return oldest
}
