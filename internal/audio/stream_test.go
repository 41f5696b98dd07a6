package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
)

type rampSource struct {
	calls  []int
	next   float32
	endAt  int
	frames int
}

func (s *rampSource) Fill(dst []float32) {
	s.calls = append(s.calls, len(dst)/2)
	for i := range dst {
		dst[i] = s.next
		s.next++
	}
	s.frames += len(dst) / 2
}

func (s *rampSource) Ended() bool { return s.endAt > 0 && s.frames >= s.endAt }

func TestStreamReaderSplitsIntoBlocks(t *testing.T) {
	src := &rampSource{}
	r := NewStreamReader(src, 4)
	p := make([]byte, 10*8)
	n, err := r.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	want := []int{4, 4, 2}
	if len(src.calls) != len(want) {
		t.Fatalf("Fill calls = %v, want %v", src.calls, want)
	}
	for i := range want {
		if src.calls[i] != want[i] {
			t.Fatalf("Fill calls = %v, want %v", src.calls, want)
		}
	}
	for i := 0; i < 20; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i) {
			t.Fatalf("sample %d = %v, want %d", i, got, i)
		}
	}
}

func TestStreamReaderPartialFrameAndEOF(t *testing.T) {
	src := &rampSource{endAt: 4}
	r := NewStreamReader(src, 4)
	if n, err := r.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Fatalf("short Read() = %d, %v", n, err)
	}
	n, err := r.Read(make([]byte, 16*8))
	if err != io.EOF {
		t.Fatalf("expected io.EOF once the source ended, got %v", err)
	}
	if n != 4*8 {
		t.Fatalf("Read() = %d bytes, want %d", n, 4*8)
	}
}
