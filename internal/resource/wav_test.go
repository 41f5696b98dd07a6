package resource

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// chunk encodes one RIFF chunk, padding odd bodies.
func chunk(id string, body []byte) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(id)
	binary.Write(buf, binary.LittleEndian, uint32(len(body)))
	buf.Write(body)
	if len(body)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func fmtBody(format, channels, rate, bits int) []byte {
	buf := new(bytes.Buffer)
	blockAlign := channels * bits / 8
	binary.Write(buf, binary.LittleEndian, uint16(format))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(rate))
	binary.Write(buf, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bits))
	return buf.Bytes()
}

func riffFile(form string, chunks ...[]byte) []byte {
	body := new(bytes.Buffer)
	body.WriteString(form)
	for _, c := range chunks {
		body.Write(c)
	}
	buf := new(bytes.Buffer)
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(body.Len()))
	buf.Write(body.Bytes())
	return buf.Bytes()
}

func le(values ...any) []byte {
	buf := new(bytes.Buffer)
	for _, v := range values {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// writeEncodedWAV writes PCM samples with the go-audio encoder.
func writeEncodedWAV(t *testing.T, rate, bits, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, rate, bits, channels, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bits,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDecodeSampleFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format int
		bits   int
		data   []byte
		want   []float32
	}{
		{"pcm8", formatPCM, 8, []byte{128, 192, 0}, []float32{0, 0.5, -1}},
		{"pcm16", formatPCM, 16, le(int16(0), int16(16384), int16(-32768)), []float32{0, 0.5, -1}},
		{
			"pcm24", formatPCM, 24,
			append(audio.Int32toInt24LEBytes(4194304), audio.Int32toInt24LEBytes(-8388608)...),
			[]float32{0.5, -1},
		},
		{"pcm32", formatPCM, 32, le(int32(1073741824), int32(math.MinInt32)), []float32{0.5, -1}},
		{"float32", formatIEEEFloat, 32, le(float32(0.25), float32(-0.75)), []float32{0.25, -0.75}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			file := riffFile("WAVE",
				chunk("fmt ", fmtBody(tt.format, 1, 8000, tt.bits)),
				chunk("data", tt.data),
			)
			got, err := decodeWAV(bytes.NewReader(file))
			if err != nil {
				t.Fatalf("decodeWAV() error = %v", err)
			}
			if len(got.left) != len(tt.want) {
				t.Fatalf("decoded %d frames, want %d", len(got.left), len(tt.want))
			}
			for i, w := range tt.want {
				if math.Abs(float64(got.left[i]-w)) > 1e-6 {
					t.Fatalf("sample %d = %v, want %v", i, got.left[i], w)
				}
				if got.right[i] != got.left[i] {
					t.Fatalf("mono sample %d not duplicated: %v vs %v", i, got.left[i], got.right[i])
				}
			}
		})
	}
}

func TestDecodeIgnoresChannelsBeyondStereo(t *testing.T) {
	t.Parallel()

	file := riffFile("WAVE",
		chunk("fmt ", fmtBody(formatPCM, 3, 8000, 16)),
		chunk("data", le(
			int16(16384), int16(-16384), int16(32767),
			int16(-8192), int16(8192), int16(32767),
		)),
	)
	got, err := decodeWAV(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("decodeWAV() error = %v", err)
	}
	if got.channels != 3 || len(got.left) != 2 {
		t.Fatalf("got %d channels / %d frames, want 3 / 2", got.channels, len(got.left))
	}
	wantL := []float32{0.5, -0.25}
	wantR := []float32{-0.5, 0.25}
	for i := range wantL {
		if got.left[i] != wantL[i] || got.right[i] != wantR[i] {
			t.Fatalf("frame %d = (%v, %v), want (%v, %v)", i, got.left[i], got.right[i], wantL[i], wantR[i])
		}
	}
}

func TestDecodeSkipsUnknownChunksAndExtendedFmt(t *testing.T) {
	t.Parallel()

	ext := append(fmtBody(formatPCM, 2, 22050, 16), le(uint16(0))...)
	file := riffFile("WAVE",
		chunk("LIST", []byte("odd!!")),
		chunk("fmt ", ext),
		chunk("fact", le(uint32(1))),
		chunk("data", le(int16(8192), int16(-8192))),
		chunk("JUNK", []byte{1, 2, 3}),
	)
	got, err := decodeWAV(bytes.NewReader(file))
	if err != nil {
		t.Fatalf("decodeWAV() error = %v", err)
	}
	if got.sampleRate != 22050 {
		t.Fatalf("sample rate = %d, want 22050", got.sampleRate)
	}
	if len(got.left) != 1 || got.left[0] != 0.25 || got.right[0] != -0.25 {
		t.Fatalf("unexpected frames %v %v", got.left, got.right)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	data := chunk("data", le(int16(1), int16(2)))
	tests := []struct {
		name string
		file []byte
		want error
	}{
		{"garbage", []byte("NOT A WAV FILE DATA"), ErrNotWavFile},
		{"empty", nil, ErrNotWavFile},
		{"wrong form", riffFile("AVI ", chunk("fmt ", fmtBody(1, 1, 8000, 16)), data), ErrNotWavFile},
		{"no fmt", riffFile("WAVE", data), ErrMissingFmtChunk},
		{"short fmt", riffFile("WAVE", chunk("fmt ", []byte{1, 0, 1, 0}), data), ErrMissingFmtChunk},
		{"no data", riffFile("WAVE", chunk("fmt ", fmtBody(1, 1, 8000, 16))), ErrMissingDataChunk},
		{"adpcm", riffFile("WAVE", chunk("fmt ", fmtBody(2, 1, 8000, 16)), data), ErrUnsupportedFormat},
		{"extensible", riffFile("WAVE", chunk("fmt ", fmtBody(0xFFFE, 1, 8000, 16)), data), ErrUnsupportedFormat},
		{"12 bit", riffFile("WAVE", chunk("fmt ", fmtBody(1, 1, 8000, 12)), data), ErrUnsupportedBitDepth},
		{"16 bit float", riffFile("WAVE", chunk("fmt ", fmtBody(3, 1, 8000, 16)), data), ErrUnsupportedBitDepth},
		{"no channels", riffFile("WAVE", chunk("fmt ", fmtBody(1, 0, 8000, 16)), data), ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeWAV(bytes.NewReader(tt.file))
			if !errors.Is(err, tt.want) {
				t.Fatalf("decodeWAV() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeTruncatedData(t *testing.T) {
	t.Parallel()

	full := riffFile("WAVE",
		chunk("fmt ", fmtBody(formatPCM, 1, 8000, 16)),
		chunk("data", le(int16(100), int16(200), int16(300), int16(400))),
	)
	// drop the last sample and a half
	got, err := decodeWAV(bytes.NewReader(full[:len(full)-3]))
	if err != nil {
		t.Fatalf("decodeWAV() error = %v", err)
	}
	if len(got.left) != 2 {
		t.Fatalf("decoded %d frames from truncated data, want 2", len(got.left))
	}
}

func TestResampleLinear(t *testing.T) {
	t.Parallel()

	up := resampleLinear([]float32{0, 1}, 1, 2)
	want := []float32{0, 0.5, 1, 0.5}
	if len(up) != len(want) {
		t.Fatalf("upsampled length = %d, want %d", len(up), len(want))
	}
	for i := range want {
		if math.Abs(float64(up[i]-want[i])) > 1e-6 {
			t.Fatalf("upsampled[%d] = %v, want %v", i, up[i], want[i])
		}
	}

	in := make([]float32, 44100)
	if got := len(resampleLinear(in, 44100, 22050)); got != 22050 {
		t.Fatalf("downsampled length = %d, want 22050", got)
	}
	if got := len(resampleLinear(in[:3], 3, 2)); got != 2 {
		t.Fatalf("length truncation = %d, want 2", got)
	}
	same := resampleLinear(in, 44100, 44100)
	if &same[0] != &in[0] {
		t.Fatal("equal rates should return the input")
	}
}

func TestComputePeaks(t *testing.T) {
	t.Parallel()

	n := 2*SamplesPerPeak + 10
	left := make([]float32, n)
	right := make([]float32, n)
	left[3] = 0.75
	right[SamplesPerPeak+1] = -0.5
	left[n-1] = -0.25

	peaks := computePeaks(left, right)
	if len(peaks) != 3 {
		t.Fatalf("got %d peaks, want 3", len(peaks))
	}
	if peaks[0].MaxL != 0.75 || peaks[0].MinL != 0 {
		t.Fatalf("bucket 0 = %+v", peaks[0])
	}
	if peaks[1].MinR != -0.5 || peaks[1].MaxR != 0 {
		t.Fatalf("bucket 1 = %+v", peaks[1])
	}
	if peaks[2].MinL != -0.25 {
		t.Fatalf("bucket 2 = %+v", peaks[2])
	}
	if computePeaks(nil, nil) != nil {
		t.Fatal("expected no peaks for empty input")
	}
}

func BenchmarkDecodePCM16Stereo(b *testing.B) {
	samples := make([]any, 2*48000)
	for i := range samples {
		samples[i] = int16(i)
	}
	file := riffFile("WAVE",
		chunk("fmt ", fmtBody(formatPCM, 2, 48000, 16)),
		chunk("data", le(samples...)),
	)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := decodeWAV(bytes.NewReader(file)); err != nil {
			b.Fatal(err)
		}
	}
}
