package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"voicekit/player/internal/proc"
)

// ElevenLabs synthesizes 16 kHz PCM through the ElevenLabs REST API and pipes
// it into a raw playback command.
type ElevenLabs struct {
	httpc    *http.Client
	runner   *proc.Runner
	apiKey   string
	voiceID  string
	modelID  string
	playback string
	base     string
}

func NewElevenLabs(runner *proc.Runner, apiKey, voiceID, modelID, playback string) *ElevenLabs {
	return &ElevenLabs{
		httpc:    &http.Client{Timeout: 30 * time.Second},
		runner:   runner,
		apiKey:   apiKey,
		voiceID:  voiceID,
		modelID:  modelID,
		playback: playback,
		base:     "https://api.elevenlabs.io",
	}
}

func (e *ElevenLabs) Say(ctx context.Context, text string) error {
	if e.apiKey == "" || e.voiceID == "" {
		speechSynthesisTotal.WithLabelValues("elevenlabs", "config").Inc()
		return errors.New("elevenlabs not configured")
	}
	body := map[string]any{"text": text}
	if e.modelID != "" {
		body["model_id"] = e.modelID
	}
	reqBytes, _ := json.Marshal(body)
	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=pcm_16000", e.base, e.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("content-type", "application/json")

	start := time.Now()
	resp, err := e.httpc.Do(req)
	if err != nil {
		speechSynthesisTotal.WithLabelValues("elevenlabs", "http").Inc()
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		speechSynthesisTotal.WithLabelValues("elevenlabs", "http").Inc()
		return fmt.Errorf("elevenlabs: status=%d body=%s", resp.StatusCode, string(b))
	}
	speechFirstByteMS.WithLabelValues("elevenlabs").Observe(float64(time.Since(start).Milliseconds()))

	spec, err := proc.Command(e.playback)
	if err != nil {
		return err
	}
	spec.Stdin = resp.Body
	if err := e.runner.Run(ctx, spec); err != nil {
		speechSynthesisTotal.WithLabelValues("elevenlabs", "playback").Inc()
		return err
	}
	speechSynthesisTotal.WithLabelValues("elevenlabs", "ok").Inc()
	return nil
}
