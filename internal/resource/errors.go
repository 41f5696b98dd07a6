package resource

import "errors"

var (
	ErrNotWavFile          = errors.New("not a WAV file")
	ErrMissingFmtChunk     = errors.New("WAV file has no fmt chunk")
	ErrMissingDataChunk    = errors.New("WAV file has no data chunk")
	ErrUnsupportedFormat   = errors.New("unsupported WAV audio format")
	ErrUnsupportedBitDepth = errors.New("unsupported WAV bit depth")
	ErrNotLoaded           = errors.New("audio resource not loaded")
	ErrClosed              = errors.New("audio resource closed")
)
