package seqmix

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RenderSamples renders seconds of interleaved stereo audio from the start
// of the timeline through the same path as live playback, without an audio
// device. It fails with ErrPlaying while the output stream is running.
func (p *Player) RenderSamples(seconds float64) ([]float32, error) {
	p.mu.Lock()
	playing := p.audio != nil && p.audio.IsPlaying()
	p.mu.Unlock()
	if playing {
		return nil, ErrPlaying
	}
	p.transport.seek(0)
	frames := int(float64(p.sampleRate) * seconds)
	out := make([]float32, frames*2)
	for done := 0; done < frames; {
		n := min(p.blockFrames, frames-done)
		p.transport.Fill(out[done*2 : (done+n)*2])
		done += n
	}
	p.transport.seek(0)
	return out, nil
}

// RenderWAV renders seconds of audio to w as a stereo PCM WAV file at
// bitDepth 16, 24 or 32.
func (p *Player) RenderWAV(w io.WriteSeeker, seconds float64, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidBitDepth, bitDepth)
	}
	samples, err := p.RenderSamples(seconds)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(w, p.sampleRate, bitDepth, 2, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  p.sampleRate,
		},
		Data:           quantize(samples, bitDepth),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	p.log.Debug("rendered wav", "seconds", seconds, "bits", bitDepth, "frames", len(samples)/2)
	return nil
}

// quantize converts float samples to clipped signed integers of bitDepth.
func quantize(samples []float32, bitDepth int) []int {
	peak := float64(int64(1)<<(bitDepth-1) - 1)
	out := make([]int, len(samples))
	for i, s := range samples {
		v := max(-1, min(1, float64(s)))
		out[i] = int(math.Round(v * peak))
	}
	return out
}
