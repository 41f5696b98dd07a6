package model

import "sync/atomic"

// IDGen hands out positive integer IDs. A project receives its generator
// from the caller so tests can run with independent counters.
type IDGen struct {
	next atomic.Int64
}

// NewIDGen returns a generator whose first ID is 1.
func NewIDGen() *IDGen {
	g := &IDGen{}
	g.next.Store(1)
	return g
}

func (g *IDGen) Next() int {
	return int(g.next.Add(1) - 1)
}

// Observe moves the counter past id, used when restoring saved IDs.
func (g *IDGen) Observe(id int) {
	for {
		cur := g.next.Load()
		if int64(id) < cur {
			return
		}
		if g.next.CompareAndSwap(cur, int64(id)+1) {
			return
		}
	}
}
