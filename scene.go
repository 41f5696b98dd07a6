package seqmix

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/seqmix/internal/effects"
	"github.com/cbegin/seqmix/internal/engine"
	"github.com/cbegin/seqmix/internal/model"
	"github.com/cbegin/seqmix/internal/synth"
	"github.com/cbegin/seqmix/internal/tempo"
)

// Scene is a YAML description of a project and its mixer settings.
type Scene struct {
	Mode        string          `yaml:"mode,omitempty"` // sequence or arrangement
	Active      string          `yaml:"active,omitempty"`
	Sequences   []SceneSequence `yaml:"sequences"`
	Arrangement []SceneLane     `yaml:"arrangement,omitempty"`
	Master      SceneMaster     `yaml:"master,omitempty"`
}

// SceneSequence is one sequence with its tempo events and tracks.
type SceneSequence struct {
	Name   string       `yaml:"name"`
	BPM    float64      `yaml:"bpm"`
	Tempo  []SceneTempo `yaml:"tempo,omitempty"`
	Tracks []SceneTrack `yaml:"tracks"`
}

type SceneTempo struct {
	Tick   int     `yaml:"tick"`
	BPM    float64 `yaml:"bpm"`
	Linear bool    `yaml:"linear,omitempty"`
}

type SceneTrack struct {
	Name    string        `yaml:"name"`
	Channel int           `yaml:"channel,omitempty"`
	Muted   bool          `yaml:"muted,omitempty"`
	Solo    bool          `yaml:"solo,omitempty"`
	Synth   SceneSynth    `yaml:"synth,omitempty"`
	Effects []SceneEffect `yaml:"effects,omitempty"`
	Notes   []SceneNote   `yaml:"notes,flow"`
}

// SceneSynth configures a built-in synth: "pulse" (the default), "fm" or
// "table".
// Zero fields keep the synth defaults; fields of the other kind are ignored.
type SceneSynth struct {
	Kind         string  `yaml:"kind,omitempty"`
	Voices       int     `yaml:"voices,omitempty"`
	Gain         float64 `yaml:"gain,omitempty"`
	Attack       float64 `yaml:"attack,omitempty"`
	Decay        float64 `yaml:"decay,omitempty"`
	Sustain      float64 `yaml:"sustain,omitempty"`
	Release      float64 `yaml:"release,omitempty"`
	Wave         string  `yaml:"wave,omitempty"`
	Duty         float64 `yaml:"duty,omitempty"`
	VibratoDepth float64 `yaml:"vibrato_depth,omitempty"`
	VibratoRate  float64 `yaml:"vibrato_rate,omitempty"`
	Cutoff       float64 `yaml:"cutoff,omitempty"`

	Operators    int       `yaml:"operators,omitempty"`
	Algorithm    string    `yaml:"algorithm,omitempty"`
	Ratios       []float64 `yaml:"ratios,flow,omitempty"`
	Levels       []float64 `yaml:"levels,flow,omitempty"`
	Feedback     float64   `yaml:"feedback,omitempty"`
	ModIndex     float64   `yaml:"mod_index,omitempty"`
	TremoloDepth float64   `yaml:"tremolo_depth,omitempty"`
	TremoloRate  float64   `yaml:"tremolo_rate,omitempty"`

	Table    []float64 `yaml:"table,flow,omitempty"`
	TableHex string    `yaml:"table_hex,omitempty"`
	Glide    float64   `yaml:"glide,omitempty"`
}

var fmAlgorithms = map[string]synth.Algorithm{
	"cascade":  synth.AlgCascade,
	"stack":    synth.AlgStack,
	"pairs":    synth.AlgPairs,
	"additive": synth.AlgAdditive,
}

// SceneNote is [key, velocity, start, length] in sequence ticks.
type SceneNote [4]int

type SceneEffect struct {
	Kind     string         `yaml:"kind"`
	Params   effects.Params `yaml:"params,omitempty"`
	Disabled bool           `yaml:"disabled,omitempty"`
}

// SceneLane is one arrangement track. A missing volume is unity.
type SceneLane struct {
	Name       string           `yaml:"name"`
	Volume     *float32         `yaml:"volume,omitempty"`
	Pan        float32          `yaml:"pan,omitempty"`
	Muted      bool             `yaml:"muted,omitempty"`
	Solo       bool             `yaml:"solo,omitempty"`
	MidiClips  []SceneMidiClip  `yaml:"midi_clips,omitempty"`
	AudioClips []SceneAudioClip `yaml:"audio_clips,omitempty"`
}

type SceneMidiClip struct {
	Sequence string `yaml:"sequence"`
	Start    int    `yaml:"start"`
	Duration int    `yaml:"duration"`
	Offset   int    `yaml:"offset,omitempty"`
	FadeIn   int    `yaml:"fade_in,omitempty"`
	FadeOut  int    `yaml:"fade_out,omitempty"`
	Muted    bool   `yaml:"muted,omitempty"`
}

// SceneAudioClip places an audio file on a lane. A missing gain is unity.
type SceneAudioClip struct {
	File          string   `yaml:"file"`
	Start         int      `yaml:"start"`
	Duration      int      `yaml:"duration"`
	OffsetSamples int64    `yaml:"offset_samples,omitempty"`
	OffsetTicks   int      `yaml:"offset_ticks,omitempty"`
	LengthSamples int64    `yaml:"length_samples,omitempty"`
	FadeIn        int      `yaml:"fade_in,omitempty"`
	FadeOut       int      `yaml:"fade_out,omitempty"`
	Gain          *float32 `yaml:"gain,omitempty"`
	Looping       bool     `yaml:"looping,omitempty"`
	Muted         bool     `yaml:"muted,omitempty"`
}

// SceneMaster holds the master bus settings.
type SceneMaster struct {
	Volume    *float64        `yaml:"volume,omitempty"`
	Bypass    bool            `yaml:"bypass,omitempty"`
	Metronome *SceneMetronome `yaml:"metronome,omitempty"`
	Effects   []SceneEffect   `yaml:"effects,omitempty"`
}

type SceneMetronome struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float32 `yaml:"volume,omitempty"`
}

// LoadScene decodes and validates a scene. Unknown keys are errors.
func LoadScene(r io.Reader) (*Scene, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scene
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadSceneFile reads a scene from path.
func LoadSceneFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc, err := LoadScene(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func (sc *Scene) validate() error {
	if len(sc.Sequences) == 0 {
		return ErrNoSequence
	}
	names := map[string]bool{}
	for _, s := range sc.Sequences {
		if s.Name == "" || names[s.Name] {
			return fmt.Errorf("%w: sequence name %q is empty or repeated", ErrInvalidScene, s.Name)
		}
		names[s.Name] = true
		for _, tr := range s.Tracks {
			if err := tr.Synth.validate(); err != nil {
				return fmt.Errorf("%w: track %q: %v", ErrInvalidScene, tr.Name, err)
			}
		}
	}
	if sc.Active != "" && !names[sc.Active] {
		return fmt.Errorf("%w: active sequence %q not defined", ErrInvalidScene, sc.Active)
	}
	if _, err := sc.mode(); err != nil {
		return err
	}
	for _, lane := range sc.Arrangement {
		for _, c := range lane.MidiClips {
			if !names[c.Sequence] {
				return fmt.Errorf("%w: lane %q: clip of unknown sequence %q", ErrInvalidScene, lane.Name, c.Sequence)
			}
			if c.Duration <= 0 {
				return fmt.Errorf("%w: lane %q: clip duration must be positive", ErrInvalidScene, lane.Name)
			}
		}
		for _, c := range lane.AudioClips {
			if c.File == "" || c.Duration <= 0 {
				return fmt.Errorf("%w: lane %q: audio clip needs a file and a positive duration", ErrInvalidScene, lane.Name)
			}
		}
	}
	return nil
}

func (sc *Scene) mode() (engine.Mode, error) {
	switch strings.ToLower(sc.Mode) {
	case "", "sequence":
		return engine.ModeSequence, nil
	case "arrangement":
		return engine.ModeArrangement, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidScene, sc.Mode)
	}
}

// ApplyScene adds the scene to the player's project and configures the
// mixer. Relative audio paths are resolved against baseDir. Effect blocks
// are appended to the existing chains.
func (p *Player) ApplyScene(sc *Scene, baseDir string) error {
	if err := sc.validate(); err != nil {
		return err
	}
	mode, _ := sc.mode()
	proj := p.project
	seqIDs := map[string]int{}

	for _, s := range sc.Sequences {
		seq := proj.AddSequence(s.Name, s.BPM)
		seqIDs[s.Name] = seq.ID
		if len(s.Tempo) > 0 {
			proj.AddTempoTrack(seq.ID)
			for _, ev := range s.Tempo {
				interp := tempo.Step
				if ev.Linear {
					interp = tempo.Linear
				}
				proj.AddTempoEvent(seq.ID, tempo.Event{Tick: ev.Tick, BPM: ev.BPM, Interp: interp})
			}
		}
		for _, st := range s.Tracks {
			if err := p.applyTrack(seq.ID, st); err != nil {
				return err
			}
		}
	}
	if sc.Active != "" {
		proj.SetActiveSequence(seqIDs[sc.Active])
	}

	for _, sl := range sc.Arrangement {
		if err := p.applyLane(sl, seqIDs, baseDir); err != nil {
			return err
		}
	}

	m := sc.Master
	for _, se := range m.Effects {
		b, err := effects.New(se.Kind, se.Params, p.sampleRate)
		if err != nil {
			return fmt.Errorf("%w: master: %v", ErrInvalidScene, err)
		}
		p.engine.AddMasterBlock(b)
		if se.Disabled {
			p.engine.SetMasterBlockEnabled(len(p.engine.MasterBlocks())-1, false)
		}
	}
	if m.Volume != nil {
		p.SetMasterVolume(*m.Volume)
	}
	p.engine.SetDSPEnabled(!m.Bypass)
	if m.Metronome != nil {
		vol := m.Metronome.Volume
		if vol == 0 {
			vol = 0.5
		}
		p.engine.SetMetronome(m.Metronome.Enabled, vol)
	}
	p.SetMode(mode)
	p.log.Info("scene applied", "sequences", len(sc.Sequences), "lanes", len(sc.Arrangement), "mode", mode)
	return nil
}

func (ss SceneSynth) validate() error {
	switch ss.Kind {
	case "", "pulse":
		if ss.Wave != "" {
			if _, ok := synth.ParseWave(ss.Wave); !ok {
				return fmt.Errorf("unknown wave %q", ss.Wave)
			}
		}
	case "fm":
		if _, ok := fmAlgorithms[ss.Algorithm]; ss.Algorithm != "" && !ok {
			return fmt.Errorf("unknown fm algorithm %q", ss.Algorithm)
		}
		if len(ss.Ratios) > 4 || len(ss.Levels) > 4 {
			return fmt.Errorf("fm takes at most 4 ratios and levels")
		}
	case "table":
		if ss.TableHex != "" {
			if _, err := synth.ParseTableHex(ss.TableHex); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown synth kind %q", ss.Kind)
	}
	return nil
}

func (ss SceneSynth) build(name string, sampleRate int) synth.SoftSynth {
	switch ss.Kind {
	case "table":
		params := synth.DefaultTableParams()
		params.Wave = ss.Table
		if ss.TableHex != "" {
			params.Wave, _ = synth.ParseTableHex(ss.TableHex)
		}
		if ss.Voices > 0 {
			params.Voices = ss.Voices
		}
		setPositive(&params.Gain, ss.Gain)
		setPositive(&params.GlideSec, ss.Glide)
		setPositive(&params.AttackSec, ss.Attack)
		setPositive(&params.DecaySec, ss.Decay)
		setPositive(&params.SustainLvl, ss.Sustain)
		setPositive(&params.ReleaseSec, ss.Release)
		setPositive(&params.LPFCutoff, ss.Cutoff)
		return synth.NewTable(name, sampleRate, params)
	case "fm":
		params := synth.DefaultFMParams()
		if ss.Voices > 0 {
			params.Voices = ss.Voices
		}
		if ss.Operators > 0 {
			params.Operators = ss.Operators
		}
		params.Algorithm = fmAlgorithms[ss.Algorithm]
		copy(params.Ratios[:], ss.Ratios)
		copy(params.Levels[:], ss.Levels)
		setPositive(&params.Gain, ss.Gain)
		setPositive(&params.Feedback, ss.Feedback)
		setPositive(&params.ModIndex, ss.ModIndex)
		setPositive(&params.AttackSec, ss.Attack)
		setPositive(&params.DecaySec, ss.Decay)
		setPositive(&params.SustainLvl, ss.Sustain)
		setPositive(&params.ReleaseSec, ss.Release)
		setPositive(&params.TremoloDepth, ss.TremoloDepth)
		setPositive(&params.TremoloRate, ss.TremoloRate)
		return synth.NewFM(name, sampleRate, params)
	}

	params := synth.DefaultParams()
	if ss.Wave != "" {
		params.Wave, _ = synth.ParseWave(ss.Wave)
	}
	if ss.Voices > 0 {
		params.Voices = ss.Voices
	}
	setPositive(&params.Gain, ss.Gain)
	setPositive(&params.Duty, ss.Duty)
	setPositive(&params.AttackSec, ss.Attack)
	setPositive(&params.DecaySec, ss.Decay)
	setPositive(&params.SustainLvl, ss.Sustain)
	setPositive(&params.ReleaseSec, ss.Release)
	setPositive(&params.VibratoDepth, ss.VibratoDepth)
	setPositive(&params.VibratoRate, ss.VibratoRate)
	setPositive(&params.LPFCutoff, ss.Cutoff)
	return synth.NewPulse(name, sampleRate, params)
}

func (p *Player) applyTrack(seqID int, st SceneTrack) error {
	proj := p.project
	tr := proj.AddTrack(seqID, st.Name, st.Channel, st.Synth.build(st.Name, p.sampleRate))
	if tr == nil {
		return fmt.Errorf("%w: track %q", ErrInvalidScene, st.Name)
	}
	for _, n := range st.Notes {
		proj.AddNote(tr.ID, model.Note{Key: n[0], Velocity: n[1], Start: n[2], Length: n[3]})
	}
	proj.SetTrackMuted(tr.ID, st.Muted)
	proj.SetTrackSolo(tr.ID, st.Solo)
	for _, se := range st.Effects {
		b, err := effects.New(se.Kind, se.Params, p.sampleRate)
		if err != nil {
			return fmt.Errorf("%w: track %q: %v", ErrInvalidScene, st.Name, err)
		}
		p.engine.AddSynthBlock(tr.ID, b)
	}
	return nil
}

func (p *Player) applyLane(sl SceneLane, seqIDs map[string]int, baseDir string) error {
	proj := p.project
	at := proj.AddArrangementTrack(sl.Name)
	if sl.Volume != nil {
		proj.SetArrangementTrackVolume(at.ID, *sl.Volume)
	}
	proj.SetArrangementTrackPan(at.ID, sl.Pan)
	proj.SetArrangementTrackMuted(at.ID, sl.Muted)
	proj.SetArrangementTrackSolo(at.ID, sl.Solo)

	for _, c := range sl.MidiClips {
		proj.AddMidiClip(at.ID, model.MidiClip{
			SequenceID:    seqIDs[c.Sequence],
			StartTick:     c.Start,
			DurationTicks: c.Duration,
			OffsetTicks:   c.Offset,
			FadeInTicks:   c.FadeIn,
			FadeOutTicks:  c.FadeOut,
			Muted:         c.Muted,
		})
	}
	for _, c := range sl.AudioClips {
		path := c.File
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		res, err := p.resources.ImportAudio(path)
		if err != nil {
			return fmt.Errorf("lane %q: %w", sl.Name, err)
		}
		id := proj.AddAudioClip(at.ID, model.AudioClip{
			ResourceID:        res.ID(),
			StartTick:         c.Start,
			DurationTicks:     c.Duration,
			OffsetSamples:     c.OffsetSamples,
			OffsetTicks:       c.OffsetTicks,
			ClipLengthSamples: c.LengthSamples,
			FadeInTicks:       c.FadeIn,
			FadeOutTicks:      c.FadeOut,
			Looping:           c.Looping,
			Muted:             c.Muted,
		})
		if c.Gain != nil {
			gain := max(*c.Gain, 0)
			proj.UpdateAudioClip(id, func(ac *model.AudioClip) { ac.Gain = gain })
		}
	}
	return nil
}

func setPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
