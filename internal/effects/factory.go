package effects

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBlock is returned by New for an unrecognised block kind.
var ErrUnknownBlock = errors.New("effects: unknown block kind")

// Params holds named block parameters. Missing entries take the block
// defaults.
type Params map[string]float64

func (p Params) get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

func (p Params) f32(name string, def float64) float32 { return float32(p.get(name, def)) }

// New builds a block by kind name, as used in scene files.
func New(kind string, p Params, sampleRate int) (Block, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "delay":
		return NewDelay(sampleRate,
			p.get("time_ms", 250),
			p.f32("feedback", 0.4),
			p.f32("cross", 0.2),
			p.f32("wet", 0.3),
		), nil
	case "reverb":
		return NewReverb(sampleRate,
			p.f32("room", 0.5),
			p.f32("feedback", 0.7),
			p.f32("wet", 0.25),
		), nil
	case "chorus":
		return NewChorus(sampleRate,
			p.f32("delay_ms", 15),
			p.f32("feedback", 0.3),
			p.f32("depth_ms", 3),
			p.f32("rate_hz", 1.5),
			p.f32("wet", 0.4),
		), nil
	case "dist", "distortion":
		return NewDistortion(sampleRate,
			p.f32("drive", 4),
			p.f32("output", 0.5),
			p.f32("cutoff_hz", 8000),
		), nil
	case "eq", "eq3":
		return NewEQ3(sampleRate,
			p.f32("low", 1),
			p.f32("mid", 1),
			p.f32("high", 1),
			p.f32("low_hz", 300),
			p.f32("high_hz", 3000),
		), nil
	case "eq5":
		eq := NewEQ5(sampleRate)
		for band := range EQ5Bands {
			eq.SetGain(band, p.f32(fmt.Sprintf("band%d", band), 1))
		}
		return eq, nil
	case "comp", "compressor":
		return NewCompressor(sampleRate,
			p.f32("threshold_db", -20),
			p.f32("ratio", 4),
			p.f32("attack_ms", 5),
			p.f32("release_ms", 100),
			p.f32("makeup_db", 0),
		), nil
	case "gain":
		return NewGain(p.f32("gain", 1)), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, kind)
}
