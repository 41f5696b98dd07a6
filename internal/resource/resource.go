package resource

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	// DefaultStreamThreshold is the duration in seconds above which a
	// resource keeps a streaming window next to its full cache.
	DefaultStreamThreshold = 30.0
	// DefaultStreamWindow is the streaming window length in seconds.
	DefaultStreamWindow = 4.0
)

// Option configures a Resource or every resource of a Manager.
type Option func(*options)

type options struct {
	streamThreshold float64
	streamWindow    float64
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		streamThreshold: DefaultStreamThreshold,
		streamWindow:    DefaultStreamWindow,
	}
}

// WithStreamThreshold sets the duration in seconds above which a streaming
// window is used.
func WithStreamThreshold(seconds float64) Option {
	return func(o *options) {
		if seconds >= 0 {
			o.streamThreshold = seconds
		}
	}
}

// WithStreamWindow sets the streaming window length in seconds.
func WithStreamWindow(seconds float64) Option {
	return func(o *options) {
		if seconds > 0 {
			o.streamWindow = seconds
		}
	}
}

// WithLogger sets the logger for load and streaming messages. The default
// is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Resource is one decoded audio file held as a stereo float buffer at the
// rate passed to Load. The full buffer is written once by Load and is
// read-only afterwards. Long files additionally get a streaming window.
type Resource struct {
	id   int
	path string
	opts options
	log  *slog.Logger

	loaded     atomic.Bool
	err        error
	sampleRate int
	channels   int
	total      int64
	left       []float32
	right      []float32
	peaks      []Peak

	stream    *streamWindow
	closed    atomic.Bool
	closeOnce sync.Once
}

// New returns an unloaded resource for path.
func New(id int, path string, opts ...Option) *Resource {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	l := o.logger
	if l == nil {
		l = slog.Default()
	}
	return &Resource{id: id, path: path, opts: o, log: l}
}

// Load decodes the file and resamples it to targetRate. On failure the error
// is returned and kept for Err; the resource stays unusable. A closed
// resource cannot be loaded again.
func (r *Resource) Load(targetRate int) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if r.loaded.Load() {
		return nil
	}
	if err := r.load(targetRate); err != nil {
		r.err = err
		r.log.Warn("audio resource load failed", "path", r.path, "err", err)
		return err
	}
	r.err = nil
	return nil
}

func (r *Resource) load(targetRate int) error {
	if targetRate <= 0 {
		return fmt.Errorf("invalid target sample rate %d", targetRate)
	}
	r.log.Debug("decoding wav file", "path", r.path)
	src, err := decodeWAVFile(r.path)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", r.path, err)
	}
	r.left = resampleLinear(src.left, src.sampleRate, targetRate)
	r.right = resampleLinear(src.right, src.sampleRate, targetRate)
	if len(r.right) < len(r.left) {
		r.left = r.left[:len(r.right)]
	}
	r.sampleRate = targetRate
	r.channels = 2
	r.total = int64(len(r.left))
	r.peaks = computePeaks(r.left, r.right)

	streaming := r.Duration() > r.opts.streamThreshold
	if streaming {
		size := int64(r.opts.streamWindow * float64(targetRate))
		r.stream = newStreamWindow(r, max(size, 1))
		r.stream.startWorker()
	}
	r.loaded.Store(true)
	r.log.Debug("audio resource loaded",
		"path", r.path,
		"source_rate", src.sampleRate,
		"source_channels", src.channels,
		"rate", targetRate,
		"frames", r.total,
		"streaming", streaming,
	)
	return nil
}

func (r *Resource) ID() int             { return r.id }
func (r *Resource) Path() string        { return r.path }
func (r *Resource) Loaded() bool        { return r.loaded.Load() }
func (r *Resource) SampleRate() int     { return r.sampleRate }
func (r *Resource) Channels() int       { return r.channels }
func (r *Resource) TotalSamples() int64 { return r.total }

// Err returns the error of the last failed Load.
func (r *Resource) Err() error { return r.err }

// Duration is the length in seconds at the loaded rate.
func (r *Resource) Duration() float64 {
	if r.sampleRate <= 0 {
		return 0
	}
	return float64(r.total) / float64(r.sampleRate)
}

// Peaks returns the waveform summary, one entry per SamplesPerPeak frames.
func (r *Resource) Peaks() []Peak { return r.peaks }

// Streaming reports whether the resource keeps a streaming window.
func (r *Resource) Streaming() bool { return r.stream != nil }

// GetSamples copies frames starting at start into left and right and returns
// the number of frames written, at most min(len(left), len(right)) and
// TotalSamples()-start. Nothing is read before start 0 or before Load.
func (r *Resource) GetSamples(start int64, left, right []float32) int {
	if !r.loaded.Load() || start < 0 || start >= r.total {
		return 0
	}
	n := int(min(int64(min(len(left), len(right))), r.total-start))
	if n <= 0 {
		return 0
	}
	if r.stream != nil {
		r.stream.read(start, left[:n], right[:n])
		return n
	}
	copy(left[:n], r.left[start:])
	copy(right[:n], r.right[start:])
	return n
}

// PrepareForPosition asks the streaming worker to move the window to start.
// It never blocks and does nothing for fully cached resources.
func (r *Resource) PrepareForPosition(start int64) {
	if r.stream == nil {
		return
	}
	r.stream.request(start)
}

// WindowBounds returns the current streaming window range [start, end). Both
// are zero for fully cached resources.
func (r *Resource) WindowBounds() (start, end int64) {
	if r.stream == nil {
		return 0, 0
	}
	return r.stream.bounds()
}

// Close stops the streaming worker and waits for it to exit. Reads after
// Close return nothing.
func (r *Resource) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.loaded.Store(false)
		if r.stream != nil {
			r.stream.stop()
		}
	})
	return nil
}
