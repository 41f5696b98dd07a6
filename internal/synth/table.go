package synth

import (
	"encoding/hex"
	"fmt"
	"math"
	"sync"
)

// TableParams configures a Table synth.
type TableParams struct {
	Voices     int
	Gain       float64
	Wave       []float64 // one cycle, at least two points
	GlideSec   float64   // pitch slide from the previous note, 0 disables
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64
	LPFCutoff  float64 // Hz, 0 disables
}

func DefaultTableParams() TableParams {
	return TableParams{
		Voices:     8,
		Gain:       0.4,
		AttackSec:  0.005,
		DecaySec:   0.12,
		SustainLvl: 0.75,
		ReleaseSec: 0.2,
		LPFCutoff:  12000,
	}
}

// ParseTableHex decodes a waveform written as signed 8-bit hex pairs, e.g.
// "00407f40 00c081c0".
func ParseTableHex(s string) ([]float64, error) {
	compact := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != ' ' && c != '\t' && c != '\n' {
			compact = append(compact, c)
		}
	}
	data, err := hex.DecodeString(string(compact))
	if err != nil {
		return nil, fmt.Errorf("wave table: %w", err)
	}
	out := make([]float64, len(data))
	for i, b := range data {
		out[i] = float64(int8(b)) / 127
	}
	return out, nil
}

type tableVoice struct {
	active    bool
	id        int
	age       int
	phase     float64 // index into the table
	freq      float64
	target    float64
	glideStep float64
	glideLeft int
	velocity  float64
	env       float64
	envState  envState
}

// Table plays a single-cycle waveform with linear interpolation.
type Table struct {
	mu         sync.Mutex
	name       string
	sampleRate float64
	params     TableParams
	voices     []tableVoice
	nextID     int
	lastFreq   float64
	lpf        float64
	lpfAlpha   float64
}

// NewTable builds a Table synth. A missing or one-point wave falls back to a
// 64-point sine.
func NewTable(name string, sampleRate int, params TableParams) *Table {
	if params.Voices <= 0 {
		params.Voices = 8
	}
	if len(params.Wave) < 2 {
		params.Wave = make([]float64, 64)
		for i := range params.Wave {
			params.Wave[i] = math.Sin(twoPi * float64(i) / 64)
		}
	} else {
		params.Wave = append([]float64(nil), params.Wave...)
	}
	t := &Table{
		name:       name,
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]tableVoice, params.Voices),
		nextID:     1,
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		t.lpfAlpha = dt / (rc + dt)
	}
	return t
}

func (t *Table) Name() string { return t.name }

func (t *Table) Params() TableParams { return t.params }

func (t *Table) NotePlay(note, velocity int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.stealVoice()
	id := t.nextID
	t.nextID++
	freq := midiToFreq(note)
	v := tableVoice{
		active:   true,
		id:       id,
		freq:     freq,
		target:   freq,
		velocity: clamp(float64(velocity)/127.0, 0, 1),
	}
	if frames := int(t.params.GlideSec * t.sampleRate); frames > 0 && t.lastFreq > 0 {
		v.freq = t.lastFreq
		v.glideLeft = frames
		v.glideStep = (freq - t.lastFreq) / float64(frames)
	}
	t.lastFreq = freq
	t.voices[slot] = v
	return id
}

func (t *Table) NoteStop(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.voices {
		if v := &t.voices[i]; v.active && v.id == id {
			v.envState = envRelease
		}
	}
}

func (t *Table) AllNotesOff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.voices {
		if t.voices[i].active {
			t.voices[i].envState = envRelease
		}
	}
}

func (t *Table) ActiveVoices() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.voices {
		if t.voices[i].active {
			n++
		}
	}
	return n
}

func (t *Table) RenderAudio(left, right []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		s := float32(t.renderFrame())
		left[i] = s
		right[i] = s
	}
}

func (t *Table) renderFrame() float64 {
	wave := t.params.Wave
	size := float64(len(wave))
	var out float64
	for i := range t.voices {
		v := &t.voices[i]
		if !v.active {
			continue
		}
		v.age++
		env := t.advanceEnv(v)
		if !v.active {
			continue
		}
		i0 := int(v.phase)
		frac := v.phase - float64(i0)
		s := wave[i0]*(1-frac) + wave[(i0+1)%len(wave)]*frac
		out += s * env * (0.2 + 0.8*v.velocity)

		if v.glideLeft > 0 {
			v.glideLeft--
			v.freq += v.glideStep
			if v.glideLeft == 0 {
				v.freq = v.target
			}
		}
		v.phase += v.freq * size / t.sampleRate
		for v.phase >= size {
			v.phase -= size
		}
	}
	out *= t.params.Gain
	if t.lpfAlpha > 0 {
		t.lpf += t.lpfAlpha * (out - t.lpf)
		out = t.lpf
	}
	return clamp(out, -1, 1)
}

func (t *Table) advanceEnv(v *tableVoice) float64 {
	pr := &t.params
	switch v.envState {
	case envAttack:
		v.env += envStep(1, pr.AttackSec, t.sampleRate)
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		v.env -= envStep(1-pr.SustainLvl, pr.DecaySec, t.sampleRate)
		if v.env <= pr.SustainLvl {
			v.env = pr.SustainLvl
			v.envState = envSustain
		}
	case envRelease:
		v.env -= envStep(max(pr.SustainLvl, 0.05), pr.ReleaseSec, t.sampleRate)
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

// stealVoice prefers a free voice, then the quietest one.
func (t *Table) stealVoice() int {
	quiet := 0
	for i := range t.voices {
		if !t.voices[i].active {
			return i
		}
		if t.voices[i].env < t.voices[quiet].env {
			quiet = i
		}
	}
	return quiet
}
