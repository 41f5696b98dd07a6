// Package effects provides stereo DSP blocks and an ordered chain to run
// them. Blocks process separate left/right buffers in place.
package effects

import "slices"

// Block processes stereo audio in place. left and right have equal length.
type Block interface {
	Name() string
	Process(left, right []float32)
	Reset()
}

type slot struct {
	block   Block
	enabled bool
}

// Chain applies blocks in user-defined order. A Chain is not safe for
// concurrent use; the render engine serializes access with its own lock.
type Chain struct {
	slots []slot
}

func NewChain(blocks ...Block) *Chain {
	c := &Chain{}
	for _, b := range blocks {
		c.Add(b)
	}
	return c
}

// Add appends an enabled block. Nil blocks are ignored.
func (c *Chain) Add(b Block) {
	if b == nil {
		return
	}
	c.slots = append(c.slots, slot{block: b, enabled: true})
}

// Remove deletes the block at index i and returns it.
func (c *Chain) Remove(i int) (Block, bool) {
	if i < 0 || i >= len(c.slots) {
		return nil, false
	}
	b := c.slots[i].block
	c.slots = slices.Delete(c.slots, i, i+1)
	return b, true
}

// Move relocates the block at index from so that it ends up at index to.
func (c *Chain) Move(from, to int) bool {
	n := len(c.slots)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}
	s := c.slots[from]
	c.slots = slices.Delete(c.slots, from, from+1)
	c.slots = slices.Insert(c.slots, to, s)
	return true
}

// SetEnabled bypasses or re-enables the block at index i.
func (c *Chain) SetEnabled(i int, on bool) bool {
	if i < 0 || i >= len(c.slots) {
		return false
	}
	c.slots[i].enabled = on
	return true
}

func (c *Chain) Enabled(i int) bool {
	return i >= 0 && i < len(c.slots) && c.slots[i].enabled
}

func (c *Chain) Len() int { return len(c.slots) }

// Block returns the block at index i, or nil.
func (c *Chain) Block(i int) Block {
	if i < 0 || i >= len(c.slots) {
		return nil
	}
	return c.slots[i].block
}

// Blocks returns the blocks in processing order.
func (c *Chain) Blocks() []Block {
	out := make([]Block, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.block
	}
	return out
}

func (c *Chain) Process(left, right []float32) {
	n := min(len(left), len(right))
	left, right = left[:n], right[:n]
	for _, s := range c.slots {
		if s.enabled {
			s.block.Process(left, right)
		}
	}
}

// Reset clears the internal state of every block, bypassed ones included.
func (c *Chain) Reset() {
	for _, s := range c.slots {
		s.block.Reset()
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clear32(bufs ...[]float32) {
	for _, b := range bufs {
		clear(b)
	}
}
