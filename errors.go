package seqmix

import "errors"

var (
	ErrNoSequence        = errors.New("project has no sequence")
	ErrInvalidScene      = errors.New("invalid scene")
	ErrInvalidBitDepth   = errors.New("unsupported bit depth")
	ErrPlaying           = errors.New("player is playing")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)
