package resource

import (
	"sync"
	"sync/atomic"
	"time"
)

const streamPollInterval = 100 * time.Millisecond

// streamWindow keeps a rolling copy of part of a resource's full buffer.
// A worker goroutine moves the window when the requested position leaves
// [start, end-size/2). Readers fall back to the full buffer for frames the
// window does not hold, so a stale window only costs bandwidth.
type streamWindow struct {
	res  *Resource
	size int64

	mu         sync.Mutex
	left       []float32
	right      []float32
	start, end int64

	requested atomic.Int64
	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

func newStreamWindow(res *Resource, size int64) *streamWindow {
	return &streamWindow{
		res:   res,
		size:  size,
		left:  make([]float32, size),
		right: make([]float32, size),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *streamWindow) startWorker() {
	s.reload(0)
	go s.run()
}

func (s *streamWindow) run() {
	defer close(s.done)
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		case <-ticker.C:
		}
		pos := s.requested.Load()
		start, end := s.bounds()
		if pos < start || pos >= end-s.size/2 {
			s.reload(pos)
		}
	}
}

// reload fills the window from pos, clamped to the resource.
func (s *streamWindow) reload(pos int64) {
	total := s.res.total
	pos = max(0, min(pos, total-1))
	end := min(pos+s.size, total)
	if end < pos {
		end = pos
	}

	s.mu.Lock()
	n := copy(s.left, s.res.left[pos:end])
	copy(s.right, s.res.right[pos:end])
	s.start, s.end = pos, pos+int64(n)
	s.mu.Unlock()

	s.res.log.Debug("streaming window reloaded", "path", s.res.path, "start", pos, "end", pos+int64(n))
}

func (s *streamWindow) request(pos int64) {
	s.requested.Store(pos)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *streamWindow) bounds() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.end
}

// read fills left and right from start. Frames inside the window come from
// it, the rest from the full buffer.
func (s *streamWindow) read(start int64, left, right []float32) {
	n := int64(len(left))
	s.mu.Lock()
	defer s.mu.Unlock()

	lo := max(start, s.start)
	hi := min(start+n, s.end)
	if lo >= hi {
		copy(left, s.res.left[start:start+n])
		copy(right, s.res.right[start:start+n])
		return
	}
	if lo > start {
		copy(left[:lo-start], s.res.left[start:lo])
		copy(right[:lo-start], s.res.right[start:lo])
	}
	copy(left[lo-start:hi-start], s.left[lo-s.start:hi-s.start])
	copy(right[lo-start:hi-start], s.right[lo-s.start:hi-s.start])
	if hi < start+n {
		copy(left[hi-start:], s.res.left[hi:start+n])
		copy(right[hi-start:], s.res.right[hi:start+n])
	}
}

// stop signals the worker, wakes it and waits for it to exit.
func (s *streamWindow) stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		select {
		case s.wake <- struct{}{}:
		default:
		}
		<-s.done
	})
}
