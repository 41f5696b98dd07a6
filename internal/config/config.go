// Package config loads runtime settings from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the settings shared by the CLI and the player.
type Config struct {
	SampleRate   int // Hz
	BufferFrames int // frames per render callback

	// Resources longer than StreamThreshold seconds are streamed through a
	// window of StreamWindow seconds instead of decoded whole.
	StreamThreshold float64
	StreamWindow    float64

	MasterVolume float64
	LogLevel     slog.Level
}

// Load reads configuration from environment variables with defaults.
// Unparseable or out of range values fall back to the default.
func Load() Config {
	return Config{
		SampleRate:      envInt("SEQMIX_SAMPLE_RATE", 48000),
		BufferFrames:    envInt("SEQMIX_BUFFER_FRAMES", 512),
		StreamThreshold: envFloat("SEQMIX_STREAM_THRESHOLD_SECONDS", 30),
		StreamWindow:    envFloat("SEQMIX_STREAM_WINDOW_SECONDS", 4),
		MasterVolume:    envFloat("SEQMIX_MASTER_VOLUME", 1.0),
		LogLevel:        ParseLevel(envStr("SEQMIX_LOG_LEVEL", "info")),
	}
}

// ParseLevel maps debug, info, warn or error to a slog level. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return fallback
}
