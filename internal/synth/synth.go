// Package synth defines the instrument contract consumed by the render
// engine and the transport, plus a built-in software synthesizer.
package synth

// Synth is implemented by every instrument a track can own. Capabilities are
// opted into through the narrower interfaces below and detected with the As
// helpers.
type Synth interface {
	Name() string
}

// SoftSynth renders audio in process. RenderAudio overwrites left and right
// (equal length) with centered, unpanned stereo; the engine applies volume,
// pan and fades afterwards.
type SoftSynth interface {
	Synth
	RenderAudio(left, right []float32)
}

// NotePlayer accepts note events. NotePlay returns an id for NoteStop.
type NotePlayer interface {
	Synth
	NotePlay(note, velocity int) int
	NoteStop(id int)
	AllNotesOff()
}

// AsSoftSynth returns s as a SoftSynth when it renders audio itself.
func AsSoftSynth(s Synth) (SoftSynth, bool) {
	if s == nil {
		return nil, false
	}
	ss, ok := s.(SoftSynth)
	return ss, ok
}

// AsNotePlayer returns s as a NotePlayer when it accepts note events.
func AsNotePlayer(s Synth) (NotePlayer, bool) {
	if s == nil {
		return nil, false
	}
	np, ok := s.(NotePlayer)
	return np, ok
}
