package resource

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3

	fmtBodySize = 16
)

// wavFormat mirrors the first 16 bytes of a fmt chunk body.
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// pcm is a decoded file at its native rate. Only the first two channels are
// kept; mono input is duplicated into both.
type pcm struct {
	sampleRate  int
	channels    int
	left, right []float32
}

func decodeWAVFile(path string) (*pcm, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeWAV(bufio.NewReader(f))
}

func decodeWAV(r io.Reader) (*pcm, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWavFile, err)
	}
	if p.Format != riff.WavFormatID {
		return nil, fmt.Errorf("%w: form type %q", ErrNotWavFile, p.Format[:])
	}

	var (
		format   *wavFormat
		data     []byte
		haveData bool
	)
	for format == nil || !haveData {
		// IDnSize reports the declared size; NextChunk would round odd
		// sizes up and turn the pad byte into sample data.
		id, size, err := p.IDnSize()
		if err != nil {
			break
		}
		ch := &riff.Chunk{ID: id, Size: int(size), R: r}
		switch id {
		case riff.FmtID:
			f, err := readFmtChunk(ch)
			if err != nil {
				return nil, err
			}
			format = f
		case riff.DataFormatID:
			// a truncated file yields whatever data is present
			data, err = io.ReadAll(io.LimitReader(ch, int64(size)))
			if err != nil {
				return nil, fmt.Errorf("reading data chunk: %w", err)
			}
			haveData = true
		default:
			ch.Drain()
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				break
			}
		}
	}

	if format == nil {
		return nil, ErrMissingFmtChunk
	}
	if !haveData {
		return nil, ErrMissingDataChunk
	}
	if err := format.validate(); err != nil {
		return nil, err
	}
	return format.decode(data), nil
}

// readFmtChunk reads the whole chunk body; bytes past the first 16 are
// extension fields and ignored.
func readFmtChunk(ch *riff.Chunk) (*wavFormat, error) {
	body, err := io.ReadAll(io.LimitReader(ch, int64(ch.Size)))
	if err != nil {
		return nil, fmt.Errorf("reading fmt chunk: %w", err)
	}
	if len(body) < fmtBodySize {
		return nil, fmt.Errorf("%w: body is %d bytes", ErrMissingFmtChunk, len(body))
	}
	return &wavFormat{
		AudioFormat:   binary.LittleEndian.Uint16(body[0:]),
		NumChannels:   binary.LittleEndian.Uint16(body[2:]),
		SampleRate:    binary.LittleEndian.Uint32(body[4:]),
		ByteRate:      binary.LittleEndian.Uint32(body[8:]),
		BlockAlign:    binary.LittleEndian.Uint16(body[12:]),
		BitsPerSample: binary.LittleEndian.Uint16(body[14:]),
	}, nil
}

func (f *wavFormat) validate() error {
	if f.AudioFormat != formatPCM && f.AudioFormat != formatIEEEFloat {
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, f.AudioFormat)
	}
	switch f.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, f.BitsPerSample)
	}
	if f.AudioFormat == formatIEEEFloat && f.BitsPerSample != 32 {
		return fmt.Errorf("%w: %d-bit float", ErrUnsupportedBitDepth, f.BitsPerSample)
	}
	if f.NumChannels == 0 || f.SampleRate == 0 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, f.NumChannels, f.SampleRate)
	}
	return nil
}

func (f *wavFormat) decode(data []byte) *pcm {
	width := int(f.BitsPerSample) / 8
	stride := int(f.NumChannels) * width
	frames := len(data) / stride
	sample := f.sampleFunc()

	out := &pcm{
		sampleRate: int(f.SampleRate),
		channels:   int(f.NumChannels),
		left:       make([]float32, frames),
		right:      make([]float32, frames),
	}
	stereo := f.NumChannels > 1
	for i := 0; i < frames; i++ {
		off := i * stride
		l := sample(data[off:])
		out.left[i] = l
		if stereo {
			out.right[i] = sample(data[off+width:])
		} else {
			out.right[i] = l
		}
	}
	return out
}

func (f *wavFormat) sampleFunc() func([]byte) float32 {
	if f.AudioFormat == formatIEEEFloat {
		return func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	}
	switch f.BitsPerSample {
	case 8:
		return func(b []byte) float32 { return float32(int(b[0])-128) / 128 }
	case 16:
		return func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		}
	case 24:
		return func(b []byte) float32 { return float32(audio.Int24LETo32(b[:3])) / 8388608 }
	default:
		return func(b []byte) float32 {
			return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
		}
	}
}
