// Package audio plays rendered frames on the default output device through
// ebiten's audio context.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source renders interleaved stereo float32 frames into dst.
type Source interface {
	Fill(dst []float32)
}

// EndingSource is a Source that can end the stream. Once Ended reports true
// the reader returns io.EOF after the current chunk.
type EndingSource interface {
	Source
	Ended() bool
}

// StreamReader adapts a Source to the little-endian float32 byte stream the
// audio context pulls. Reads are split into blocks of at most blockFrames so
// the source always renders fixed-size callbacks.
type StreamReader struct {
	mu          sync.Mutex
	source      Source
	blockFrames int
	buf         []float32
}

func NewStreamReader(source Source, blockFrames int) *StreamReader {
	if blockFrames <= 0 {
		blockFrames = 512
	}
	return &StreamReader{source: source, blockFrames: blockFrames}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if len(r.buf) < r.blockFrames*2 {
		r.buf = make([]float32, r.blockFrames*2)
	}
	n := 0
	es, ending := r.source.(EndingSource)
	for done := 0; done < frames; {
		chunk := min(frames-done, r.blockFrames)
		buf := r.buf[:chunk*2]
		r.source.Fill(buf)
		for i, v := range buf {
			binary.LittleEndian.PutUint32(p[n+i*4:], math.Float32bits(v))
		}
		n += chunk * 8
		done += chunk
		if ending && es.Ended() {
			return n, io.EOF
		}
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

// Player is a live output stream.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedAudioContext returns the process-wide context. ebiten allows a
// single context, so every player must use the same sample rate.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// NewPlayer opens an output stream pulling from source in blocks of
// blockFrames. The device buffer is sized to the same block length.
func NewPlayer(sampleRate, blockFrames int, source Source) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, blockFrames)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if blockFrames > 0 && sampleRate > 0 {
		pl.SetBufferSize(time.Duration(blockFrames) * time.Second / time.Duration(sampleRate))
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()           { p.player.Play() }
func (p *Player) Pause()          { p.player.Pause() }
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// Position is how much audio the device has played.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Close() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
