package speech

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"voicekit/player/internal/proc"
)

// Pico speaks offline with SVOX pico2wave, converting its WAV output to raw
// PCM for the same playback command ElevenLabs uses.
type Pico struct {
	runner   *proc.Runner
	lang     string
	playback string
	bin      string
}

func NewPico(runner *proc.Runner, lang, playback string) *Pico {
	return &Pico{runner: runner, lang: lang, playback: playback, bin: "pico2wave"}
}

func (p *Pico) Say(ctx context.Context, text string) error {
	dir, err := os.MkdirTemp("", "voicekit-tts-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	wav := filepath.Join(dir, "say.wav")

	start := time.Now()
	if err := p.runner.Run(ctx, proc.Spec{Name: p.bin, Args: []string{"-l", p.lang, "-w", wav, text}}); err != nil {
		speechSynthesisTotal.WithLabelValues("pico", "synth").Inc()
		return err
	}
	speechFirstByteMS.WithLabelValues("pico").Observe(float64(time.Since(start).Milliseconds()))

	f, err := os.Open(wav)
	if err != nil {
		return err
	}
	defer f.Close()
	pcm, err := readWAVPCM16(f, 16000)
	if err != nil {
		speechSynthesisTotal.WithLabelValues("pico", "decode").Inc()
		return err
	}

	spec, err := proc.Command(p.playback)
	if err != nil {
		return err
	}
	spec.Stdin = bytes.NewReader(pcm)
	if err := p.runner.Run(ctx, spec); err != nil {
		speechSynthesisTotal.WithLabelValues("pico", "playback").Inc()
		return err
	}
	speechSynthesisTotal.WithLabelValues("pico", "ok").Inc()
	return nil
}
