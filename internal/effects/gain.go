package effects

import (
	"math"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
)

// Gain scales both channels by a linear factor that may be changed while
// rendering.
type Gain struct {
	bits atomic.Uint32
}

func NewGain(gain float32) *Gain {
	g := &Gain{}
	g.Set(gain)
	return g
}

func (g *Gain) Name() string { return "gain" }

func (g *Gain) Set(gain float32) { g.bits.Store(math.Float32bits(gain)) }

func (g *Gain) Value() float32 { return math.Float32frombits(g.bits.Load()) }

func (g *Gain) Process(left, right []float32) {
	v := g.Value()
	if v == 1 {
		return
	}
	vek32.MulNumber_Inplace(left, v)
	vek32.MulNumber_Inplace(right, v)
}

func (g *Gain) Reset() {}
