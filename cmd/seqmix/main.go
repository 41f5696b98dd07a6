package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cbegin/seqmix"
	"github.com/cbegin/seqmix/internal/config"
	"github.com/cbegin/seqmix/internal/engine"
	"github.com/cbegin/seqmix/internal/resource"
)

const defaultScene = `
sequences:
  - name: demo
    bpm: 120
    tracks:
      - name: lead
        synth: {wave: pulse, duty: 0.5}
        notes: [[64, 100, 0, 240], [67, 100, 240, 240], [71, 100, 480, 240], [74, 100, 720, 720]]
`

func main() {
	cfg := config.Load()
	var (
		scenePath  = flag.String("scene", "", "path to a YAML scene (default: built-in demo)")
		sampleRate = flag.Int("sample-rate", cfg.SampleRate, "output sample rate")
		buffer     = flag.Int("buffer", cfg.BufferFrames, "frames per render callback")
		modeName   = flag.String("mode", "", "override the scene mode: sequence|arrangement")
		loop       = flag.Bool("loop", false, "loop playback; use with -loops to count then stop")
		loops      = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		volume     = flag.Float64("volume", cfg.MasterVolume, "master volume (0..2)")
		metronome  = flag.Bool("metronome", false, "enable the metronome click")
		outPath    = flag.String("out", "", "render to this WAV file instead of playing")
		seconds    = flag.Float64("seconds", 0, "seconds to render with -out (0 = project length)")
		bits       = flag.Int("bits", 16, "WAV bit depth with -out: 16|24|32")
		logLevel   = flag.String("log-level", cfg.LogLevel.String(), "debug|info|warn|error")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(*logLevel)}))
	slog.SetDefault(logger)

	scene, baseDir, err := loadScene(*scenePath)
	if err != nil {
		log.Fatal(err)
	}
	pl, err := seqmix.NewPlayer(*sampleRate,
		seqmix.WithLogger(logger),
		seqmix.WithBlockFrames(*buffer),
		seqmix.WithLoopPlayback(*loop && *outPath == ""),
		seqmix.WithResourceOptions(
			resource.WithStreamThreshold(cfg.StreamThreshold),
			resource.WithStreamWindow(cfg.StreamWindow),
		),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer pl.Close()
	if err := pl.ApplyScene(scene, baseDir); err != nil {
		log.Fatal(err)
	}
	if *modeName != "" {
		mode, err := parseMode(*modeName)
		if err != nil {
			log.Fatal(err)
		}
		pl.SetMode(mode)
	}
	pl.SetMasterVolume(*volume)
	if *metronome {
		pl.Engine().SetMetronome(true, 0.5)
	}

	if *outPath != "" {
		if err := render(pl, *outPath, *seconds, *bits); err != nil {
			log.Fatal(err)
		}
		return
	}

	ch := pl.Watch()
	if err := pl.Play(); err != nil {
		log.Fatal(err)
	}
	loopCount := 0
	for event := range ch {
		switch event.Kind {
		case seqmix.EventPlaybackEnded:
			fmt.Println("playback completed")
			goto done
		case seqmix.EventLoopCompleted:
			loopCount++
			fmt.Printf("loop %d completed\n", loopCount)
			if *loops > 0 && loopCount >= *loops {
				pl.Stop()
			}
		}
	}
done:
	pl.Wait()
}

func loadScene(path string) (*seqmix.Scene, string, error) {
	if strings.TrimSpace(path) == "" {
		sc, err := seqmix.LoadScene(strings.NewReader(defaultScene))
		return sc, "", err
	}
	sc, err := seqmix.LoadSceneFile(path)
	if err != nil {
		return nil, "", err
	}
	return sc, filepath.Dir(path), nil
}

func parseMode(name string) (engine.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sequence":
		return engine.ModeSequence, nil
	case "arrangement":
		return engine.ModeArrangement, nil
	default:
		return 0, fmt.Errorf("invalid -mode %q (expected sequence|arrangement)", name)
	}
}

func render(pl *seqmix.Player, path string, seconds float64, bits int) error {
	if seconds <= 0 {
		seconds = pl.Duration()
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pl.RenderWAV(f, seconds, bits); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%.2fs)\n", path, seconds)
	return nil
}
